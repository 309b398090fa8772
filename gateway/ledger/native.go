package ledger

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/metalego/contracts/model"
)

// NativeBalance はネイティブ通貨の残高を返す (ロックを取らない)
func (w *World) NativeBalance(addr common.Address) *uint256.Int {
	if bal, ok := w.balances[addr]; ok {
		return bal.Clone()
	}
	return new(uint256.Int)
}

// Balance はロックを取ってネイティブ通貨の残高を返す
func (w *World) Balance(addr common.Address) *uint256.Int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.NativeBalance(addr)
}

// Fund はジェネシス割り当てとして残高を加算する
func (w *World) Fund(addr common.Address, amount *uint256.Int) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.credit(addr, amount)
}

// Credit は実行中のトランザクション内で残高を加算する (入金ブリッジ用)
func (w *World) Credit(addr common.Address, amount *uint256.Int) error {
	return w.credit(addr, amount)
}

func (w *World) credit(addr common.Address, amount *uint256.Int) error {
	bal := w.NativeBalance(addr)
	sum, overflow := new(uint256.Int).AddOverflow(bal, amount)
	if overflow {
		return model.Precondition("balance overflow")
	}
	model.SetEntry(w, w.balances, addr, sum)
	return nil
}

func (w *World) move(from, to common.Address, amount *uint256.Int) error {
	if amount.IsZero() {
		return nil
	}
	bal := w.NativeBalance(from)
	if bal.Lt(amount) {
		return model.Precondition("insufficient native balance")
	}
	model.SetEntry(w, w.balances, from, new(uint256.Int).Sub(bal, amount))
	return w.credit(to, amount)
}

// SendNative は from から to へネイティブ通貨を送る
// 受け取り側がコントラクトの場合は ReceiveNative フックを呼び出し、フックのエラーで送金全体が失敗する
func (w *World) SendNative(call *model.Call, from, to common.Address, amount *uint256.Int) error {
	if to == (common.Address{}) {
		return model.ExternalCall("native transfer failed", model.Precondition("transfer to the zero address"))
	}
	if err := w.move(from, to, amount); err != nil {
		return model.ExternalCall("native transfer failed", err)
	}

	code, ok := w.code[to]
	if !ok {
		return nil
	}
	receiver, ok := code.(model.NativeReceiver)
	if !ok {
		return model.ExternalCall("native transfer failed", model.Precondition("recipient contract does not accept native currency"))
	}
	nested := &model.Call{
		From:   from,
		To:     to,
		Value:  amount.Clone(),
		TxHash: call.TxHash,
		Block:  call.Block,
	}
	if err := receiver.ReceiveNative(nested); err != nil {
		return model.ExternalCall("native transfer rejected by recipient", err)
	}
	return nil
}
