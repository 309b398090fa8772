package ledger

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/metalego/contracts/model"
)

type allowanceKey struct {
	owner   common.Address
	spender common.Address
}

// Token は devnet 上の代替トークン (支払い通貨)
type Token struct {
	w        *World
	address  common.Address
	Name     string
	Symbol   string
	Decimals uint8

	supply     *uint256.Int
	balances   map[common.Address]*uint256.Int
	allowances map[allowanceKey]*uint256.Int
}

func newToken(w *World, addr common.Address, name, symbol string) *Token {
	return &Token{
		w:          w,
		address:    addr,
		Name:       name,
		Symbol:     symbol,
		Decimals:   18,
		supply:     new(uint256.Int),
		balances:   make(map[common.Address]*uint256.Int),
		allowances: make(map[allowanceKey]*uint256.Int),
	}
}

func (t *Token) Address() common.Address {
	return t.address
}

func (t *Token) TotalSupply() *uint256.Int {
	return t.supply.Clone()
}

func (t *Token) BalanceOf(owner common.Address) *uint256.Int {
	if bal, ok := t.balances[owner]; ok {
		return bal.Clone()
	}
	return new(uint256.Int)
}

func (t *Token) Allowance(owner, spender common.Address) *uint256.Int {
	if a, ok := t.allowances[allowanceKey{owner, spender}]; ok {
		return a.Clone()
	}
	return new(uint256.Int)
}

func (t *Token) Approve(owner, spender common.Address, amount *uint256.Int) error {
	if spender == (common.Address{}) {
		return model.Precondition("ERC20: approve to the zero address")
	}
	model.SetEntry(t.w, t.allowances, allowanceKey{owner, spender}, amount.Clone())
	return nil
}

func (t *Token) Transfer(from, to common.Address, amount *uint256.Int) error {
	if to == (common.Address{}) {
		return model.Precondition("ERC20: transfer to the zero address")
	}
	bal := t.BalanceOf(from)
	if bal.Lt(amount) {
		return model.Precondition("ERC20: transfer amount exceeds balance")
	}
	model.SetEntry(t.w, t.balances, from, new(uint256.Int).Sub(bal, amount))
	model.SetEntry(t.w, t.balances, to, new(uint256.Int).Add(t.BalanceOf(to), amount))
	return nil
}

// TransferFrom は spender の許可量を消費して from から to へ送る
// 上限値の許可は消費しない
func (t *Token) TransferFrom(spender, from, to common.Address, amount *uint256.Int) error {
	allowance := t.Allowance(from, spender)
	if allowance.Lt(amount) {
		return model.Precondition("ERC20: insufficient allowance")
	}
	if !isMaxAllowance(allowance) {
		model.SetEntry(t.w, t.allowances, allowanceKey{from, spender}, new(uint256.Int).Sub(allowance, amount))
	}
	return t.Transfer(from, to, amount)
}

// Mint は供給量を増やす (ジェネシス割り当て用)
func (t *Token) Mint(to common.Address, amount *uint256.Int) error {
	t.w.mu.Lock()
	defer t.w.mu.Unlock()
	return t.mint(to, amount)
}

func (t *Token) mint(to common.Address, amount *uint256.Int) error {
	if to == (common.Address{}) {
		return model.Precondition("ERC20: mint to the zero address")
	}
	supply, overflow := new(uint256.Int).AddOverflow(t.supply, amount)
	if overflow {
		return model.Precondition("ERC20: supply overflow")
	}
	model.SetValue(t.w, &t.supply, supply)
	model.SetEntry(t.w, t.balances, to, new(uint256.Int).Add(t.BalanceOf(to), amount))
	return nil
}

func isMaxAllowance(a *uint256.Int) bool {
	return a.Eq(new(uint256.Int).SetAllOne())
}
