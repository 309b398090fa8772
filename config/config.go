package config

import (
	"errors"
	"fmt"
	"math/big"
	"os"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// WeiPerEther はネイティブ通貨1単位あたりの wei
var WeiPerEther = decimal.New(1, 18)

type Config struct {
	Port      string
	Debug     bool
	LogPath   string
	SentryDsn string

	Market  MarketConfig
	Factory FactoryConfig
	Genesis GenesisConfig

	BackendBaseURL   string
	InfuraSepoliaURL string
	CollectWallet    string
}

type MarketConfig struct {
	Owner        string
	FeeReceiver  string
	FeeRate      uint64
	SalesEnabled bool
}

type FactoryConfig struct {
	FeeTierOne       string
	FeeTierTwo       string
	FeeTierThree     string
	Quota            uint64
	SignerAddress    string
	SignerPrivateKey string
}

type GenesisConfig struct {
	Alloc          []string
	CurrencyTokens []string
}

// Init は .env があれば読み込む
func Init() {
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, os.ErrNotExist) {
		zap.L().With(zap.Error(err)).Warn("Unable to load .env")
	}
}

func Get() *Config {
	return &Config{
		Port:      getString("PORT", "8080"),
		Debug:     getBool("DEBUG", false),
		LogPath:   getString("LOG_PATH", ""),
		SentryDsn: getString("SENTRY_DSN", ""),
		Market: MarketConfig{
			Owner:        getString("OWNER_ADDRESS", "0x00000000000000000000000000000000000000a1"),
			FeeReceiver:  getString("FEE_RECEIVER_ADDRESS", "0x00000000000000000000000000000000000000a2"),
			FeeRate:      getUint64("FEE_RATE", 25),
			SalesEnabled: getBool("SALES_ENABLED", true),
		},
		Factory: FactoryConfig{
			FeeTierOne:       getString("MINT_FEE_TIER1", "0.1"),
			FeeTierTwo:       getString("MINT_FEE_TIER2", "0.3"),
			FeeTierThree:     getString("MINT_FEE_TIER3", "0.5"),
			Quota:            getUint64("MINT_QUOTA", 1),
			SignerAddress:    getString("SIGNER_ADDRESS", ""),
			SignerPrivateKey: getString("SIGNER_PRIVATE_KEY", ""),
		},
		Genesis: GenesisConfig{
			Alloc:          getSlice("GENESIS_ALLOC", make([]string, 0), ","),
			CurrencyTokens: getSlice("CURRENCY_TOKENS", []string{"USDC"}, ","),
		},
		BackendBaseURL:   getString("BACKEND_BASE_URL", ""),
		InfuraSepoliaURL: getString("INFURA_SEPOLIA_URL", ""),
		CollectWallet:    getString("APP_COLLECT_WALLET_ADDRESS", ""),
	}
}

// ParseEther は "0.1" のような10進数のネイティブ通貨量を wei に変換する
func ParseEther(s string) (*uint256.Int, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("negative amount %q", s)
	}
	wei := d.Mul(WeiPerEther)
	if !wei.Equal(wei.Truncate(0)) {
		return nil, fmt.Errorf("amount %q has more than 18 decimals", s)
	}
	v, overflow := uint256.FromBig(wei.BigInt())
	if overflow {
		return nil, fmt.Errorf("amount %q overflows", s)
	}
	return v, nil
}

// FormatEther は wei をネイティブ通貨単位の10進数文字列にする
func FormatEther(wei *uint256.Int) string {
	if wei == nil {
		return "0"
	}
	return decimal.NewFromBigInt(wei.ToBig(), -18).String()
}

// Allocation はジェネシスで割り当てる残高
type Allocation struct {
	Address common.Address
	Amount  *uint256.Int
}

// ParseAlloc は "addr:amount" 形式 (amount はネイティブ通貨単位) の割り当てを解析する
func ParseAlloc(entries []string) ([]Allocation, error) {
	out := make([]Allocation, 0, len(entries))
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, ":", 2)
		if len(parts) != 2 || !common.IsHexAddress(parts[0]) {
			return nil, fmt.Errorf("invalid genesis allocation %q", entry)
		}
		amount, err := ParseEther(parts[1])
		if err != nil {
			return nil, err
		}
		out = append(out, Allocation{Address: common.HexToAddress(parts[0]), Amount: amount})
	}
	return out, nil
}

func getString(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}

	return defaultValue
}

func getInt(key string, defaultValue int) int {
	valStr := getString(key, "")
	val, _, err := big.ParseFloat(valStr, 10, 0, big.ToNearestEven)
	if err != nil {
		return defaultValue
	}

	intVal, _ := val.Int64()
	return int(intVal)
}

func getUint64(key string, defaultValue uint) uint64 {
	v := getInt(key, int(defaultValue))
	if v < 0 {
		return uint64(defaultValue)
	}
	return uint64(v)
}

func getBool(key string, defaultValue bool) bool {
	valStr := getString(key, "")
	if val, err := strconv.ParseBool(valStr); err == nil {
		return val
	}

	return defaultValue
}

func getSlice(key string, defaultVal []string, sep string) []string {
	valStr := getString(key, "")
	if valStr == "" {
		return defaultVal
	}

	return strings.Split(valStr, sep)
}
