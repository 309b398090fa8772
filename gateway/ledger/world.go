package ledger

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"github.com/metalego/contracts/model"
)

// HeaderSource はトランザクションごとにブロックヘッダーを供給する
type HeaderSource interface {
	NextHeader(ctx context.Context) (*model.BlockHeader, error)
}

// World は devnet のワールドステート
// トランザクションは mu によって1件ずつ直列に実行され、失敗時はジャーナルで全て巻き戻される
type World struct {
	mu      sync.Mutex
	headers HeaderSource
	journal journal
	current *model.Call

	balances map[common.Address]*uint256.Int
	nonces   map[common.Address]uint64
	code     map[common.Address]interface{}
	assets   map[common.Address]*Collection
	tokens   map[common.Address]*Token

	logs    []*model.ContractEvent
	pending []*model.ContractEvent

	subMu   sync.Mutex
	subs    map[int]chan *model.ContractEvent
	nextSub int
}

func NewWorld(headers HeaderSource) *World {
	return &World{
		headers:  headers,
		balances: make(map[common.Address]*uint256.Int),
		nonces:   make(map[common.Address]uint64),
		code:     make(map[common.Address]interface{}),
		assets:   make(map[common.Address]*Collection),
		tokens:   make(map[common.Address]*Token),
		subs:     make(map[int]chan *model.ContractEvent),
	}
}

// ===============================================
// デプロイ
// ===============================================

// Deploy は deployer のノンスからコントラクトアドレスを導出し、build が返すコントラクトを登録する
func (w *World) Deploy(deployer common.Address, build func(addr common.Address) interface{}) common.Address {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.deploy(deployer, build)
}

func (w *World) deploy(deployer common.Address, build func(addr common.Address) interface{}) common.Address {
	nonce := w.nonces[deployer]
	w.nonces[deployer] = nonce + 1
	addr := crypto.CreateAddress(deployer, nonce)
	w.code[addr] = build(addr)
	zap.L().With(zap.String("deployer", deployer.Hex()), zap.String("address", addr.Hex())).Debug("Contract deployed")
	return addr
}

// DeployCollection は NFT コレクションをデプロイする
func (w *World) DeployCollection(deployer common.Address, name, symbol string, minter common.Address) *Collection {
	w.mu.Lock()
	defer w.mu.Unlock()

	var c *Collection
	w.deploy(deployer, func(addr common.Address) interface{} {
		c = newCollection(w, addr, name, symbol, minter)
		return c
	})
	w.assets[c.address] = c
	return c
}

// DeployToken は代替トークンをデプロイする
func (w *World) DeployToken(deployer common.Address, name, symbol string) *Token {
	w.mu.Lock()
	defer w.mu.Unlock()

	var t *Token
	w.deploy(deployer, func(addr common.Address) interface{} {
		t = newToken(w, addr, name, symbol)
		return t
	})
	w.tokens[t.address] = t
	return t
}

// Register は任意のアドレスにコントラクトを配置する (テスト用のフック実装など)
func (w *World) Register(addr common.Address, contract interface{}) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.code[addr] = contract
}

func (w *World) isContract(addr common.Address) bool {
	_, ok := w.code[addr]
	return ok
}

// ===============================================
// トランザクション実行
// ===============================================

// Transact は msg を1件のトランザクションとして実行する
// fn がエラーを返した場合、送金額の移動も含めた全ての変更とイベントが取り消される
// fn の中から Transact や View を呼んではならない
func (w *World) Transact(ctx context.Context, msg model.Msg, fn func(call *model.Call) error) (*model.Receipt, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	// ヘッダーはロック内で取得し、コミット順とブロック順を一致させる
	header, err := w.headers.NextHeader(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch block header: %w", err)
	}

	nonce := w.nonces[msg.From]
	w.nonces[msg.From] = nonce + 1

	value := msg.Value
	if value == nil {
		value = new(uint256.Int)
	}
	call := &model.Call{
		From:   msg.From,
		To:     msg.To,
		Value:  value.Clone(),
		TxHash: txHash(msg.From, nonce, header.Number),
		Block:  *header,
	}
	receipt := &model.Receipt{
		TxHash:      call.TxHash.Hex(),
		BlockNumber: header.Number,
		From:        msg.From.Hex(),
		To:          msg.To.Hex(),
	}

	w.current = call
	defer func() { w.current = nil }()

	snap := w.journal.snapshot()
	if err := w.run(call, fn); err != nil {
		w.journal.revertTo(snap)
		w.pending = nil
		receipt.Status = model.ReceiptFailed
		receipt.Error = err.Error()
		receipt.Events = []*model.ContractEvent{}
		zap.L().With(
			zap.String("tx", receipt.TxHash),
			zap.String("from", receipt.From),
			zap.String("to", receipt.To),
			zap.Error(err),
		).Info("Transaction reverted")
		return receipt, err
	}

	w.journal.reset()
	events := w.pending
	w.pending = nil
	if events == nil {
		events = []*model.ContractEvent{}
	}
	w.logs = append(w.logs, events...)

	receipt.Status = model.ReceiptSuccess
	receipt.Success = true
	receipt.Events = events

	zap.L().With(
		zap.String("tx", receipt.TxHash),
		zap.Uint64("block", header.Number),
		zap.Int("events", len(events)),
	).Debug("Transaction committed")

	w.broadcast(events)
	return receipt, nil
}

func (w *World) run(call *model.Call, fn func(call *model.Call) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("execution panicked: %v", r)
		}
	}()

	if !call.Value.IsZero() {
		if err := w.move(call.From, call.To, call.Value); err != nil {
			return err
		}
	}
	return fn(call)
}

// View は読み取り専用の処理をトランザクションと排他的に実行する
func (w *World) View(fn func() error) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return fn()
}

// Call はコントラクト間呼び出しのコールフレームを作る (value は from から to へ移動する)
func (w *World) Call(parent *model.Call, from, to common.Address, value *uint256.Int) (*model.Call, error) {
	if value == nil {
		value = new(uint256.Int)
	}
	if err := w.move(from, to, value); err != nil {
		return nil, err
	}
	return &model.Call{
		From:   from,
		To:     to,
		Value:  value.Clone(),
		TxHash: parent.TxHash,
		Block:  parent.Block,
	}, nil
}

// Record は実行中のトランザクションに取り消し処理を登録する
// トランザクション外 (ジェネシス設定など) の変更は記録しない
func (w *World) Record(undo func()) {
	if w.current == nil {
		return
	}
	w.journal.append(undo)
}

// Emit は実行中のトランザクションにイベントを追加する
func (w *World) Emit(contract common.Address, ev *model.ContractEvent) {
	ev.Contract = contract.Hex()
	if w.current == nil {
		w.logs = append(w.logs, ev)
		return
	}
	ev.TxHash = w.current.TxHash.Hex()
	ev.BlockNo = w.current.Block.Number

	n := len(w.pending)
	w.pending = append(w.pending, ev)
	w.Record(func() { w.pending = w.pending[:n] })
}

// ===============================================
// コラボレータの解決
// ===============================================

func (w *World) Asset(addr common.Address) (model.AssetLedger, error) {
	c, ok := w.assets[addr]
	if !ok {
		return nil, model.Precondition("asset contract not found")
	}
	return c, nil
}

func (w *World) Minter(addr common.Address) (model.AssetMinter, error) {
	c, ok := w.assets[addr]
	if !ok {
		return nil, model.Precondition("asset contract not found")
	}
	return c, nil
}

func (w *World) Currency(addr common.Address) (model.CurrencyLedger, error) {
	t, ok := w.tokens[addr]
	if !ok {
		return nil, model.Precondition("currency contract not found")
	}
	return t, nil
}

// Collection はアドレスから NFT コレクションを返す (ロックを取らない)
func (w *World) Collection(addr common.Address) (*Collection, bool) {
	c, ok := w.assets[addr]
	return c, ok
}

// Token はアドレスから代替トークンを返す (ロックを取らない)
func (w *World) Token(addr common.Address) (*Token, bool) {
	t, ok := w.tokens[addr]
	return t, ok
}

// Tokens はデプロイ済みの代替トークン一覧を返す (ロックを取らない)
func (w *World) Tokens() []*Token {
	out := make([]*Token, 0, len(w.tokens))
	for _, t := range w.tokens {
		out = append(out, t)
	}
	return out
}

// ===============================================
// イベントログ
// ===============================================

// Events は確定済みのイベントを返す (eventType が空なら全件)
func (w *World) Events(eventType model.EventType) []*model.ContractEvent {
	w.mu.Lock()
	defer w.mu.Unlock()

	out := make([]*model.ContractEvent, 0, len(w.logs))
	for _, ev := range w.logs {
		if eventType == "" || ev.Type == eventType {
			out = append(out, ev)
		}
	}
	return out
}

// SubscribeEvents は確定したイベントを受け取るチャネルを返す
// ctx がキャンセルされるとチャネルは閉じられる
func (w *World) SubscribeEvents(ctx context.Context) (<-chan *model.ContractEvent, error) {
	ch := make(chan *model.ContractEvent, 100)

	w.subMu.Lock()
	id := w.nextSub
	w.nextSub++
	w.subs[id] = ch
	w.subMu.Unlock()

	go func() {
		<-ctx.Done()
		w.subMu.Lock()
		delete(w.subs, id)
		close(ch)
		w.subMu.Unlock()
	}()

	return ch, nil
}

func (w *World) broadcast(events []*model.ContractEvent) {
	w.subMu.Lock()
	defer w.subMu.Unlock()

	for _, ev := range events {
		for id, ch := range w.subs {
			select {
			case ch <- ev:
			default:
				zap.L().With(zap.Int("subscriber", id), zap.String("type", string(ev.Type))).Warn("Event subscriber is full, dropping event")
			}
		}
	}
}

func txHash(from common.Address, nonce, block uint64) common.Hash {
	var buf [16]byte
	binary.BigEndian.PutUint64(buf[:8], nonce)
	binary.BigEndian.PutUint64(buf[8:], block)
	return crypto.Keccak256Hash(from.Bytes(), buf[:])
}
