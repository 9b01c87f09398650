package simulate

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"github.com/spf13/viper"
)

// Scenario describes the world a simulation starts from and the
// transactions it then runs, one per step.
type Scenario struct {
	ChainID      uint64            `mapstructure:"chain_id"`
	StartTime    uint64            `mapstructure:"start_time"`
	Factory      string            `mapstructure:"factory"`
	Router       string            `mapstructure:"router"`
	InitCodeHash string            `mapstructure:"init_code_hash"`
	Accounts     map[string]string `mapstructure:"accounts"`
	Tokens       []TokenSpec       `mapstructure:"tokens"`
	Steps        []Step            `mapstructure:"steps"`
}

// TokenSpec deploys one token. Balances are keyed by account name;
// ApproveRouter lists accounts granting the router an unlimited allowance.
type TokenSpec struct {
	Symbol        string            `mapstructure:"symbol"`
	Address       string            `mapstructure:"address"`
	Decimals      uint8             `mapstructure:"decimals"`
	Behavior      string            `mapstructure:"behavior"`
	Balances      map[string]string `mapstructure:"balances"`
	ApproveRouter []string          `mapstructure:"approve_router"`
}

// Step operations.
const (
	OpCreatePool      = "create_pool"
	OpAddLiquidity    = "add_liquidity"
	OpRemoveLiquidity = "remove_liquidity"
	OpSwapExactIn     = "swap_exact_in"
	OpSwapExactOut    = "swap_exact_out"
	OpTransfer        = "transfer"
	OpApprove         = "approve"
	OpSkim            = "skim"
	OpSync            = "sync"
	OpAdvance         = "advance"
)

// Step is one transaction. Tokens are referenced by symbol and accounts by
// name; amounts are decimal integers with an optional eN exponent.
// Deadline is relative to the block time, zero meaning no slack.
type Step struct {
	Op           string   `mapstructure:"op"`
	From         string   `mapstructure:"from"`
	To           string   `mapstructure:"to"`
	Spender      string   `mapstructure:"spender"`
	Token        string   `mapstructure:"token"`
	TokenA       string   `mapstructure:"token_a"`
	TokenB       string   `mapstructure:"token_b"`
	Path         []string `mapstructure:"path"`
	Amount       string   `mapstructure:"amount"`
	AmountA      string   `mapstructure:"amount_a"`
	AmountB      string   `mapstructure:"amount_b"`
	AmountAMin   string   `mapstructure:"amount_a_min"`
	AmountBMin   string   `mapstructure:"amount_b_min"`
	Liquidity    string   `mapstructure:"liquidity"`
	AmountIn     string   `mapstructure:"amount_in"`
	AmountOut    string   `mapstructure:"amount_out"`
	AmountOutMin string   `mapstructure:"amount_out_min"`
	AmountInMax  string   `mapstructure:"amount_in_max"`
	Deadline     int64    `mapstructure:"deadline"`
	Seconds      uint64   `mapstructure:"seconds"`
	// ExpectError names the failure the step must end with: an error kind
	// such as "slippage" or a substring of the error message.
	ExpectError string `mapstructure:"expect_error"`
}

// LoadScenario reads a YAML, JSON or TOML scenario file.
func LoadScenario(path string) (Scenario, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetDefault("chain_id", 31337)
	v.SetDefault("start_time", 1_700_000_000)
	if err := v.ReadInConfig(); err != nil {
		return Scenario{}, fmt.Errorf("read scenario: %w", err)
	}

	sc := Scenario{
		ChainID:      v.GetUint64("chain_id"),
		StartTime:    v.GetUint64("start_time"),
		Factory:      v.GetString("factory"),
		Router:       v.GetString("router"),
		InitCodeHash: v.GetString("init_code_hash"),
		Accounts:     v.GetStringMapString("accounts"),
	}
	if err := v.UnmarshalKey("tokens", &sc.Tokens); err != nil {
		return Scenario{}, fmt.Errorf("decode tokens: %w", err)
	}
	if err := v.UnmarshalKey("steps", &sc.Steps); err != nil {
		return Scenario{}, fmt.Errorf("decode steps: %w", err)
	}
	if len(sc.Tokens) == 0 {
		return Scenario{}, fmt.Errorf("scenario %s declares no tokens", path)
	}
	return sc, nil
}

// accountAddress resolves a name to its configured address, or derives a
// stable one from the name.
func (sc Scenario) accountAddress(name string) (common.Address, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return common.Address{}, fmt.Errorf("empty account name")
	}
	if common.IsHexAddress(key) {
		return common.HexToAddress(key), nil
	}
	if raw, ok := sc.Accounts[key]; ok {
		if !common.IsHexAddress(raw) {
			return common.Address{}, fmt.Errorf("account %s: invalid address %s", name, raw)
		}
		return common.HexToAddress(raw), nil
	}
	return common.BytesToAddress(crypto.Keccak256([]byte("account:" + key))[12:]), nil
}

// ParseAmount parses "1500", "15e2" or "1.5e3" style integers.
func ParseAmount(input string) (*uint256.Int, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return new(uint256.Int), nil
	}
	mantissa, exp := input, int64(0)
	if i := strings.IndexAny(input, "eE"); i >= 0 {
		n, ok := new(big.Int).SetString(input[i+1:], 10)
		if !ok || n.Sign() < 0 || !n.IsInt64() {
			return nil, fmt.Errorf("invalid amount exponent %q", input)
		}
		mantissa, exp = input[:i], n.Int64()
	}
	if whole, frac, ok := strings.Cut(mantissa, "."); ok {
		frac = strings.TrimRight(frac, "0")
		if int64(len(frac)) > exp {
			return nil, fmt.Errorf("amount %q is not an integer", input)
		}
		mantissa, exp = whole+frac, exp-int64(len(frac))
	}

	n, ok := new(big.Int).SetString(mantissa, 10)
	if !ok || n.Sign() < 0 {
		return nil, fmt.Errorf("invalid amount %q", input)
	}
	n.Mul(n, new(big.Int).Exp(big.NewInt(10), big.NewInt(exp), nil))
	out, overflow := uint256.FromBig(n)
	if overflow {
		return nil, fmt.Errorf("amount %q overflows 256 bits", input)
	}
	return out, nil
}
