package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"swapEngine/internal/chain"
	"swapEngine/internal/config"
	"swapEngine/internal/dex"
	"swapEngine/internal/indexer"
	"swapEngine/internal/pathmath"
	"swapEngine/internal/registry"
)

type quoteOutput struct {
	Mode    string   `json:"mode"`
	Path    []string `json:"path"`
	Pools   []string `json:"pools"`
	Amounts []string `json:"amounts"`
	Block   uint64   `json:"block,omitempty"`
}

func runQuote(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadQuote(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	loc, err := parseLocator(cfg.Factory, cfg.InitCodeHash)
	if err != nil {
		return err
	}
	path, err := indexer.ParseAddresses(cfg.Path)
	if err != nil {
		return fmt.Errorf("path: %w", err)
	}
	if (cfg.AmountIn == "") == (cfg.AmountOut == "") {
		return fmt.Errorf("exactly one of amount-in and amount-out is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var src pathmath.ReserveSource
	if cfg.RPCURL != "" {
		chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
		if err != nil {
			return fmt.Errorf("connect rpc: %w", err)
		}
		defer chainClient.Close()
		src = dex.NewPairReader(chainClient, cfg.Block)
	} else {
		static, err := parseStaticReserves(loc, cfg.Reserves)
		if err != nil {
			return err
		}
		src = static
	}

	out := quoteOutput{Block: cfg.Block}
	var amounts []*uint256.Int
	if cfg.AmountIn != "" {
		amountIn, err := uint256.FromDecimal(cfg.AmountIn)
		if err != nil {
			return fmt.Errorf("amount-in: %w", err)
		}
		out.Mode = "exact_in"
		amounts, err = pathmath.AmountsOut(ctx, src, loc, amountIn, path)
		if err != nil {
			return fmt.Errorf("quote: %w", err)
		}
	} else {
		amountOut, err := uint256.FromDecimal(cfg.AmountOut)
		if err != nil {
			return fmt.Errorf("amount-out: %w", err)
		}
		out.Mode = "exact_out"
		amounts, err = pathmath.AmountsIn(ctx, src, loc, amountOut, path)
		if err != nil {
			return fmt.Errorf("quote: %w", err)
		}
	}

	for i, token := range path {
		out.Path = append(out.Path, token.Hex())
		out.Amounts = append(out.Amounts, amounts[i].ToBig().String())
		if i == 0 {
			continue
		}
		pool, err := loc.PoolAddress(path[i-1], token)
		if err != nil {
			return err
		}
		out.Pools = append(out.Pools, pool.Hex())
	}

	logger.Debug("quote",
		zap.String("mode", out.Mode),
		zap.Bool("live", cfg.RPCURL != ""),
		zap.Strings("amounts", out.Amounts),
	)

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func runAddress(cmd *cobra.Command, args []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadQuote(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	loc, err := parseLocator(cfg.Factory, cfg.InitCodeHash)
	if err != nil {
		return err
	}
	tokens, err := indexer.ParseAddresses(args)
	if err != nil {
		return err
	}
	if len(tokens) != 2 {
		return fmt.Errorf("two token addresses are required")
	}
	token0, token1, err := registry.SortAssets(tokens[0], tokens[1])
	if err != nil {
		return err
	}
	pool, err := loc.PoolAddress(token0, token1)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s token0=%s token1=%s\n", pool.Hex(), token0.Hex(), token1.Hex())
	return err
}

func parseLocator(factory, initCodeHash string) (pathmath.Locator, error) {
	if !common.IsHexAddress(factory) {
		return pathmath.Locator{}, fmt.Errorf("invalid factory address: %q", factory)
	}
	raw, err := hexutil.Decode(initCodeHash)
	if err != nil || len(raw) != common.HashLength {
		return pathmath.Locator{}, fmt.Errorf("invalid init code hash: %q", initCodeHash)
	}
	return pathmath.Locator{
		Factory:      common.HexToAddress(factory),
		InitCodeHash: common.BytesToHash(raw),
	}, nil
}

// parseStaticReserves reads "tokenA:tokenB:reserveA:reserveB" entries.
func parseStaticReserves(loc pathmath.Locator, entries []string) (pathmath.StaticReserves, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("reserves are required without an rpc url")
	}
	out := pathmath.StaticReserves{}
	for _, entry := range entries {
		parts := strings.Split(entry, ":")
		if len(parts) != 4 {
			return nil, fmt.Errorf("invalid reserve %q, want tokenA:tokenB:reserveA:reserveB", entry)
		}
		tokens, err := indexer.ParseAddresses(parts[:2])
		if err != nil {
			return nil, fmt.Errorf("reserve %q: %w", entry, err)
		}
		if len(tokens) != 2 {
			return nil, fmt.Errorf("invalid reserve %q, want tokenA:tokenB:reserveA:reserveB", entry)
		}
		reserveA, err := uint256.FromDecimal(strings.TrimSpace(parts[2]))
		if err != nil {
			return nil, fmt.Errorf("reserve %q: %w", entry, err)
		}
		reserveB, err := uint256.FromDecimal(strings.TrimSpace(parts[3]))
		if err != nil {
			return nil, fmt.Errorf("reserve %q: %w", entry, err)
		}
		if err := out.Set(loc, tokens[0], tokens[1], reserveA, reserveB); err != nil {
			return nil, fmt.Errorf("reserve %q: %w", entry, err)
		}
	}
	return out, nil
}
