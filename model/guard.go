package model

// Guard はコントラクト単位の再入防止ロック
// トランザクションは World によって直列化されているため、保持中の再入はフック経由の再帰呼び出しに限られる
type Guard struct {
	entered bool
}

// Enter はロックを取得し、解放関数を返す。保持中であれば即座に ErrReentrantCall を返す
//
//	release, err := g.Enter()
//	if err != nil {
//		return err
//	}
//	defer release()
func (g *Guard) Enter() (func(), error) {
	if g.entered {
		return nil, ErrReentrantCall
	}
	g.entered = true
	return func() { g.entered = false }, nil
}

func (g *Guard) Entered() bool {
	return g.entered
}
