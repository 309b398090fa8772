package ledger

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/metalego/contracts/model"
)

// DefaultMaxSupply はティアコレクションの発行上限
const DefaultMaxSupply = 200000

type operatorKey struct {
	owner    common.Address
	operator common.Address
}

// Collection は devnet 上の NFT コントラクト
// ミントは設定されたミンター (ファクトリー) からのみ受け付ける
type Collection struct {
	w         *World
	address   common.Address
	Name      string
	Symbol    string
	minter    common.Address
	maxSupply uint64
	nextID    uint64

	owners    map[uint256.Int]common.Address
	balances  map[common.Address]uint64
	approvals map[uint256.Int]common.Address
	operators map[operatorKey]bool
}

func newCollection(w *World, addr common.Address, name, symbol string, minter common.Address) *Collection {
	return &Collection{
		w:         w,
		address:   addr,
		Name:      name,
		Symbol:    symbol,
		minter:    minter,
		maxSupply: DefaultMaxSupply,
		nextID:    1,
		owners:    make(map[uint256.Int]common.Address),
		balances:  make(map[common.Address]uint64),
		approvals: make(map[uint256.Int]common.Address),
		operators: make(map[operatorKey]bool),
	}
}

func (c *Collection) Address() common.Address {
	return c.address
}

func (c *Collection) Minter() common.Address {
	return c.minter
}

// SetMinter はミント権限を持つアドレスを差し替える (デプロイ時の設定)
func (c *Collection) SetMinter(minter common.Address) {
	c.w.mu.Lock()
	defer c.w.mu.Unlock()
	c.minter = minter
}

// SetMaxSupply は発行上限を変更する (デプロイ時の設定)
func (c *Collection) SetMaxSupply(max uint64) {
	c.w.mu.Lock()
	defer c.w.mu.Unlock()
	c.maxSupply = max
}

func (c *Collection) OwnerOf(tokenID *uint256.Int) (common.Address, error) {
	owner, ok := c.owners[*tokenID]
	if !ok {
		return common.Address{}, model.Precondition("ERC721: invalid token ID")
	}
	return owner, nil
}

func (c *Collection) BalanceOf(owner common.Address) uint64 {
	return c.balances[owner]
}

func (c *Collection) GetApproved(tokenID *uint256.Int) common.Address {
	return c.approvals[*tokenID]
}

func (c *Collection) IsApprovedForAll(owner, operator common.Address) bool {
	return c.operators[operatorKey{owner, operator}]
}

// TotalMinted はこれまでに発行されたトークン数
func (c *Collection) TotalMinted() uint64 {
	return c.nextID - 1
}

func (c *Collection) Approve(caller, to common.Address, tokenID *uint256.Int) error {
	owner, err := c.OwnerOf(tokenID)
	if err != nil {
		return err
	}
	if to == owner {
		return model.Precondition("ERC721: approval to current owner")
	}
	if caller != owner && !c.IsApprovedForAll(owner, caller) {
		return model.Unauthorized("ERC721: approve caller is not token owner or approved for all")
	}
	model.SetEntry(c.w, c.approvals, *tokenID, to)
	return nil
}

func (c *Collection) SetApprovalForAll(caller, operator common.Address, approved bool) error {
	if caller == operator {
		return model.Precondition("ERC721: approve to caller")
	}
	model.SetEntry(c.w, c.operators, operatorKey{caller, operator}, approved)
	return nil
}

func (c *Collection) isApprovedOrOwner(spender common.Address, tokenID *uint256.Int) (bool, error) {
	owner, err := c.OwnerOf(tokenID)
	if err != nil {
		return false, err
	}
	return spender == owner || c.IsApprovedForAll(owner, spender) || c.GetApproved(tokenID) == spender, nil
}

// TransferFrom は operator の権限で from から to へ所有権を移す
func (c *Collection) TransferFrom(operator, from, to common.Address, tokenID *uint256.Int) error {
	ok, err := c.isApprovedOrOwner(operator, tokenID)
	if err != nil {
		return err
	}
	if !ok {
		return model.Unauthorized("ERC721: caller is not token owner or approved")
	}
	if c.owners[*tokenID] != from {
		return model.Precondition("ERC721: transfer from incorrect owner")
	}
	if to == (common.Address{}) {
		return model.Precondition("ERC721: transfer to the zero address")
	}

	model.DeleteEntry(c.w, c.approvals, *tokenID)
	model.SetEntry(c.w, c.balances, from, c.balances[from]-1)
	model.SetEntry(c.w, c.balances, to, c.balances[to]+1)
	model.SetEntry(c.w, c.owners, *tokenID, to)
	return nil
}

// SafeTransferFrom は転送後、受け取り側がコントラクトであれば受け取りフックで承認を確認する
func (c *Collection) SafeTransferFrom(operator, from, to common.Address, tokenID *uint256.Int, data []byte) error {
	if err := c.TransferFrom(operator, from, to, tokenID); err != nil {
		return err
	}
	return c.checkOnReceived(operator, from, to, tokenID, data)
}

// Mint は次のトークンIDを to に発行する
func (c *Collection) Mint(minter, to common.Address) (*uint256.Int, error) {
	if minter != c.minter {
		return nil, model.Unauthorized("only the factory can mint")
	}
	if to == (common.Address{}) {
		return nil, model.Precondition("ERC721: mint to the zero address")
	}
	if c.nextID > c.maxSupply {
		return nil, model.Precondition("max supply exceeded")
	}

	tokenID := uint256.NewInt(c.nextID)
	model.SetValue(c.w, &c.nextID, c.nextID+1)
	model.SetEntry(c.w, c.balances, to, c.balances[to]+1)
	model.SetEntry(c.w, c.owners, *tokenID, to)

	if err := c.checkOnReceived(minter, common.Address{}, to, tokenID, nil); err != nil {
		return nil, err
	}
	return tokenID, nil
}

func (c *Collection) checkOnReceived(operator, from, to common.Address, tokenID *uint256.Int, data []byte) error {
	code, ok := c.w.code[to]
	if !ok {
		return nil
	}
	receiver, ok := code.(model.AssetReceiver)
	if !ok {
		return model.Precondition("ERC721: transfer to non ERC721Receiver implementer")
	}
	selector, err := receiver.OnAssetReceived(operator, from, tokenID, data)
	if err != nil {
		return model.ExternalCall("ERC721: receiver hook failed", err)
	}
	if selector != model.AssetReceivedSelector {
		return model.Precondition("ERC721: transfer to non ERC721Receiver implementer")
	}
	return nil
}
