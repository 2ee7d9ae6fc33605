package web3

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// ChainSnapshot represents summarized network metadata for UI/reporting.
type ChainSnapshot struct {
	ChainID     string
	BlockNumber string
	Notes       string
}

// Client defines the common interface that any chain implementation must
// provide so higher layers can read on-chain state uniformly.
type Client interface {
	// TokenBalance returns the raw ERC-20 balance of holder in the token's
	// smallest unit.
	TokenBalance(ctx context.Context, token, holder common.Address) (*big.Int, error)
	FetchChainSnapshot(ctx context.Context) (ChainSnapshot, error)
	Close()
}
