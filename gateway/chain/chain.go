package chain

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"

	"github.com/metalego/contracts/model"
)

// SimulatedHeaders は devnet 用のブロックヘッダー生成器
// トランザクションごとに1ブロック進み、親ハッシュは直前のヘッダーから導出する
type SimulatedHeaders struct {
	mu     sync.Mutex
	number uint64
	parent common.Hash
	offset time.Duration
	now    func() time.Time
}

func NewSimulatedHeaders() *SimulatedHeaders {
	return &SimulatedHeaders{now: time.Now}
}

// NewSimulatedHeadersAt は固定時刻から始まるヘッダー生成器を作る (テスト用)
func NewSimulatedHeadersAt(start time.Time) *SimulatedHeaders {
	return &SimulatedHeaders{now: func() time.Time { return start }}
}

func (s *SimulatedHeaders) NextHeader(ctx context.Context) (*model.BlockHeader, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.number++
	ts := uint64(s.now().Add(s.offset).Unix())
	header := &model.BlockHeader{
		Number:     s.number,
		Time:       ts,
		ParentHash: s.parent,
	}

	var buf [16]byte
	binary.BigEndian.PutUint64(buf[:8], s.number)
	binary.BigEndian.PutUint64(buf[8:], ts)
	s.parent = crypto.Keccak256Hash(s.parent.Bytes(), buf[:])

	return header, nil
}

// Warp は以降のブロック時刻を d だけ進める
func (s *SimulatedHeaders) Warp(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offset += d
}

// ===============================================
// 実チェーンのヘッダーに追従する実装
// ===============================================

// EthHeaders は ethclient から最新ブロックを取得してヘッダーとして使う
// 同じブロックが続く場合もブロック番号はそのまま使う
type EthHeaders struct {
	client *ethclient.Client
}

func NewEthHeaders(client *ethclient.Client) *EthHeaders {
	return &EthHeaders{client: client}
}

func (e *EthHeaders) NextHeader(ctx context.Context) (*model.BlockHeader, error) {
	header, err := e.client.HeaderByNumber(ctx, nil)
	if err != nil {
		zap.L().With(zap.Error(err)).Error("Failed to get latest block header")
		return nil, fmt.Errorf("failed to get latest block: %w", err)
	}
	if header.Number == nil {
		return nil, errors.New("latest header has no block number")
	}

	return &model.BlockHeader{
		Number:     header.Number.Uint64(),
		Time:       header.Time,
		ParentHash: header.ParentHash,
	}, nil
}
