// Package calls assembles raw contract call batches for delegated execution.
// Builders are pure: identical logical inputs always encode to identical
// calldata. The relay deduplicates identical batches from the same signer, so
// callers repeating an operation on purpose must vary a distinguishing
// parameter (amount, deadline) to avoid a false duplicate rejection.
package calls

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"delegate-api/internal/types"
)

const erc20ABIJSON = `[
  {"name":"approve","type":"function","inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
  {"name":"transfer","type":"function","inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
  {"name":"mint","type":"function","inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[]}
]`

const routerABIJSON = `[
  {"name":"swapExactTokensForTokens","type":"function","inputs":[
    {"name":"amountIn","type":"uint256"},
    {"name":"amountOutMin","type":"uint256"},
    {"name":"path","type":"address[]"},
    {"name":"to","type":"address"},
    {"name":"deadline","type":"uint256"}],
   "outputs":[{"name":"amounts","type":"uint256[]"}]}
]`

var (
	erc20ABI  = mustParseABI(erc20ABIJSON)
	routerABI = mustParseABI(routerABIJSON)
)

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic("invalid builtin ABI: " + err.Error())
	}
	return parsed
}

func checkAddress(name, address string) error {
	if !types.IsAddressValid(address) {
		return fmt.Errorf("%s is not a valid address: %q", name, address)
	}
	return nil
}

func checkAmount(name string, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("%s must be a positive amount", name)
	}
	return nil
}

// BuildTransfer returns a single-call batch moving `amount` of `token` to
// `recipient`.
func BuildTransfer(token, recipient string, amount *big.Int) (types.DelegatedCallBatch, error) {
	if err := checkAddress("token", token); err != nil {
		return nil, err
	}
	if err := checkAddress("recipient", recipient); err != nil {
		return nil, err
	}
	if err := checkAmount("amount", amount); err != nil {
		return nil, err
	}

	data, err := erc20ABI.Pack("transfer", common.HexToAddress(recipient), amount)
	if err != nil {
		return nil, fmt.Errorf("failed to encode transfer: %w", err)
	}
	return types.DelegatedCallBatch{
		{Target: token, Data: data, Value: big.NewInt(0)},
	}, nil
}

// BuildApproveAndTransfer returns an approve-then-transfer pair on the same
// token: approve `spender` for `amount`, then transfer `amount` to
// `recipient`.
func BuildApproveAndTransfer(token, spender, recipient string, amount *big.Int) (types.DelegatedCallBatch, error) {
	if err := checkAddress("token", token); err != nil {
		return nil, err
	}
	if err := checkAddress("spender", spender); err != nil {
		return nil, err
	}
	if err := checkAddress("recipient", recipient); err != nil {
		return nil, err
	}
	if err := checkAmount("amount", amount); err != nil {
		return nil, err
	}

	approveData, err := erc20ABI.Pack("approve", common.HexToAddress(spender), amount)
	if err != nil {
		return nil, fmt.Errorf("failed to encode approve: %w", err)
	}
	transferData, err := erc20ABI.Pack("transfer", common.HexToAddress(recipient), amount)
	if err != nil {
		return nil, fmt.Errorf("failed to encode transfer: %w", err)
	}
	return types.DelegatedCallBatch{
		{Target: token, Data: approveData, Value: big.NewInt(0)},
		{Target: token, Data: transferData, Value: big.NewInt(0)},
	}, nil
}

// BuildApproveAndSwap returns an approve on the input token followed by a
// swapExactTokensForTokens on the router. Amounts are caller-supplied; no
// price discovery happens here.
func BuildApproveAndSwap(token, router string, amountIn, amountOutMin *big.Int, path []string, recipient string, deadline *big.Int) (types.DelegatedCallBatch, error) {
	if err := checkAddress("token", token); err != nil {
		return nil, err
	}
	if err := checkAddress("router", router); err != nil {
		return nil, err
	}
	if err := checkAddress("recipient", recipient); err != nil {
		return nil, err
	}
	if err := checkAmount("amountIn", amountIn); err != nil {
		return nil, err
	}
	if amountOutMin == nil || amountOutMin.Sign() < 0 {
		return nil, fmt.Errorf("amountOutMin must be a non-negative amount")
	}
	if len(path) < 2 {
		return nil, fmt.Errorf("swap path needs at least two tokens, got %d", len(path))
	}
	if deadline == nil || deadline.Sign() <= 0 {
		return nil, fmt.Errorf("deadline must be a positive unix timestamp")
	}

	hopPath := make([]common.Address, len(path))
	for i, hop := range path {
		if err := checkAddress(fmt.Sprintf("path[%d]", i), hop); err != nil {
			return nil, err
		}
		hopPath[i] = common.HexToAddress(hop)
	}

	approveData, err := erc20ABI.Pack("approve", common.HexToAddress(router), amountIn)
	if err != nil {
		return nil, fmt.Errorf("failed to encode approve: %w", err)
	}
	swapData, err := routerABI.Pack("swapExactTokensForTokens",
		amountIn, amountOutMin, hopPath, common.HexToAddress(recipient), deadline)
	if err != nil {
		return nil, fmt.Errorf("failed to encode swap: %w", err)
	}
	return types.DelegatedCallBatch{
		{Target: token, Data: approveData, Value: big.NewInt(0)},
		{Target: router, Data: swapData, Value: big.NewInt(0)},
	}, nil
}

// BuildMint returns a single-call batch minting `amount` to `recipient` on a
// mintable token contract.
func BuildMint(contract, recipient string, amount *big.Int) (types.DelegatedCallBatch, error) {
	if err := checkAddress("contract", contract); err != nil {
		return nil, err
	}
	if err := checkAddress("recipient", recipient); err != nil {
		return nil, err
	}
	if err := checkAmount("amount", amount); err != nil {
		return nil, err
	}

	data, err := erc20ABI.Pack("mint", common.HexToAddress(recipient), amount)
	if err != nil {
		return nil, fmt.Errorf("failed to encode mint: %w", err)
	}
	return types.DelegatedCallBatch{
		{Target: contract, Data: data, Value: big.NewInt(0)},
	}, nil
}
