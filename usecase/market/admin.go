package usecase

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/metalego/contracts/model"
)

func (m *Market) onlyOwner(call *model.Call) error {
	if call.From != m.owner {
		return model.Unauthorized("Ownable: caller is not the owner")
	}
	return nil
}

// SetSalesEnabled は取引全体の有効・無効を切り替える
func (m *Market) SetSalesEnabled(call *model.Call, enabled bool) error {
	if err := m.onlyOwner(call); err != nil {
		return err
	}
	model.SetValue(m.chain, &m.salesEnabled, enabled)
	return nil
}

func (m *Market) AddSupportedAsset(call *model.Call, asset common.Address) error {
	if err := m.onlyOwner(call); err != nil {
		return err
	}
	if asset == (common.Address{}) {
		return model.Precondition("invalid address")
	}
	model.SetEntry(m.chain, m.supportedAsset, asset, true)
	return nil
}

func (m *Market) RemoveSupportedAsset(call *model.Call, asset common.Address) error {
	if err := m.onlyOwner(call); err != nil {
		return err
	}
	if asset == (common.Address{}) {
		return model.Precondition("invalid address")
	}
	model.SetEntry(m.chain, m.supportedAsset, asset, false)
	return nil
}

// AddSupportedCurrency は支払い通貨を追加する。既に追加済みの場合はエラー
func (m *Market) AddSupportedCurrency(call *model.Call, currency common.Address) error {
	if err := m.onlyOwner(call); err != nil {
		return err
	}
	if currency == (common.Address{}) {
		return model.Precondition("invalid address")
	}
	if m.supportedCurrency[currency] {
		return model.Precondition("currency already supported")
	}
	model.SetEntry(m.chain, m.supportedCurrency, currency, true)
	return nil
}

// RemoveSupportedCurrency は支払い通貨を削除する。既に削除済みの場合はエラー
func (m *Market) RemoveSupportedCurrency(call *model.Call, currency common.Address) error {
	if err := m.onlyOwner(call); err != nil {
		return err
	}
	if currency == (common.Address{}) {
		return model.Precondition("invalid address")
	}
	if !m.supportedCurrency[currency] {
		return model.Precondition("currency already removed")
	}
	model.SetEntry(m.chain, m.supportedCurrency, currency, false)
	return nil
}

func (m *Market) SetFeeReceiver(call *model.Call, receiver common.Address) error {
	if err := m.onlyOwner(call); err != nil {
		return err
	}
	if receiver == (common.Address{}) {
		return model.Precondition("invalid address")
	}
	model.SetValue(m.chain, &m.feeReceiver, receiver)
	return nil
}

// SetFeeRate は手数料率 (1000分率) を変更する
func (m *Market) SetFeeRate(call *model.Call, rate uint64) error {
	if err := m.onlyOwner(call); err != nil {
		return err
	}
	if rate > FeeDenominator {
		return model.Precondition("fee rate exceeds 1000")
	}
	model.SetValue(m.chain, &m.feeRate, rate)
	return nil
}
