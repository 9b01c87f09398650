package indexer

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"swapEngine/internal/registry"
)

// ParseAddresses converts string addresses into common.Address.
func ParseAddresses(inputs []string) ([]common.Address, error) {
	addresses := make([]common.Address, 0, len(inputs))
	for _, input := range inputs {
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		if !common.IsHexAddress(input) {
			return nil, fmt.Errorf("invalid address: %s", input)
		}
		addresses = append(addresses, common.HexToAddress(input))
	}
	return addresses, nil
}

// ParseTopic0 converts string topic0 hashes into common.Hash.
func ParseTopic0(inputs []string) ([]common.Hash, error) {
	topics := make([]common.Hash, 0, len(inputs))
	for _, input := range inputs {
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		data, err := hexutil.Decode(input)
		if err != nil {
			return nil, fmt.Errorf("invalid topic0: %s", input)
		}
		if len(data) != 32 {
			return nil, fmt.Errorf("invalid topic0 length: %s", input)
		}
		topics = append(topics, common.BytesToHash(data))
	}
	return topics, nil
}

// ParsePairs converts "tokenA:tokenB" entries into address pairs.
func ParsePairs(inputs []string) ([][2]common.Address, error) {
	pairs := make([][2]common.Address, 0, len(inputs))
	for _, input := range inputs {
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		a, b, ok := strings.Cut(input, ":")
		if !ok {
			return nil, fmt.Errorf("invalid pair %q, want tokenA:tokenB", input)
		}
		tokens, err := ParseAddresses([]string{a, b})
		if err != nil {
			return nil, fmt.Errorf("pair %q: %w", input, err)
		}
		if len(tokens) != 2 {
			return nil, fmt.Errorf("invalid pair %q, want tokenA:tokenB", input)
		}
		pairs = append(pairs, [2]common.Address{tokens[0], tokens[1]})
	}
	return pairs, nil
}

// FilterSpec names the contracts to index: explicit addresses, pairs whose
// address is derived from the factory, and optionally the factory itself.
type FilterSpec struct {
	Addresses      []string
	Pairs          []string
	Factory        string
	InitCodeHash   string
	IncludeFactory bool
}

// ResolveAddresses expands a FilterSpec into a deduplicated address list.
func ResolveAddresses(spec FilterSpec) ([]common.Address, error) {
	explicit, err := ParseAddresses(spec.Addresses)
	if err != nil {
		return nil, err
	}
	pairs, err := ParsePairs(spec.Pairs)
	if err != nil {
		return nil, err
	}

	var factory common.Address
	var initCodeHash common.Hash
	if len(pairs) > 0 || spec.IncludeFactory {
		if !common.IsHexAddress(spec.Factory) {
			return nil, fmt.Errorf("invalid factory address: %q", spec.Factory)
		}
		factory = common.HexToAddress(spec.Factory)
	}
	if len(pairs) > 0 {
		raw, err := hexutil.Decode(spec.InitCodeHash)
		if err != nil || len(raw) != common.HashLength {
			return nil, fmt.Errorf("invalid init code hash: %q", spec.InitCodeHash)
		}
		initCodeHash = common.BytesToHash(raw)
	}

	seen := make(map[common.Address]struct{})
	out := make([]common.Address, 0, len(explicit)+len(pairs)+1)
	add := func(addr common.Address) {
		if _, ok := seen[addr]; ok {
			return
		}
		seen[addr] = struct{}{}
		out = append(out, addr)
	}

	for _, addr := range explicit {
		add(addr)
	}
	for _, pair := range pairs {
		addr, err := registry.PoolAddress(factory, initCodeHash, pair[0], pair[1])
		if err != nil {
			return nil, fmt.Errorf("derive pair %s:%s: %w", pair[0].Hex(), pair[1].Hex(), err)
		}
		add(addr)
	}
	if spec.IncludeFactory {
		add(factory)
	}
	return out, nil
}
