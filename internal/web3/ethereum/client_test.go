package ethereum

import (
	"context"
	"errors"
	"math/big"
	"testing"

	gethcore "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
)

type fakeCaller struct {
	balance  *big.Int
	chainID  *big.Int
	block    uint64
	callErr  error
	lastCall gethcore.CallMsg
}

func (f *fakeCaller) CallContract(_ context.Context, msg gethcore.CallMsg, _ *big.Int) ([]byte, error) {
	f.lastCall = msg
	if f.callErr != nil {
		return nil, f.callErr
	}
	return common.LeftPadBytes(f.balance.Bytes(), 32), nil
}

func (f *fakeCaller) ChainID(_ context.Context) (*big.Int, error) {
	return f.chainID, nil
}

func (f *fakeCaller) BlockNumber(_ context.Context) (uint64, error) {
	return f.block, nil
}

func TestTokenBalance(t *testing.T) {
	caller := &fakeCaller{balance: big.NewInt(100_000000)}
	client, err := newClient("sepolia", "test", caller)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	token := common.HexToAddress("0x1c7D4B196Cb0C7B01d743Fbc6116a902379C7238")
	holder := common.HexToAddress("0x00000000000000000000000000000000deadbeef")

	balance, err := client.TokenBalance(context.Background(), token, holder)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if balance.Cmp(big.NewInt(100_000000)) != 0 {
		t.Fatalf("unexpected balance: %s", balance)
	}

	if caller.lastCall.To == nil || *caller.lastCall.To != token {
		t.Fatalf("call targeted the wrong contract: %v", caller.lastCall.To)
	}
	// balanceOf selector followed by the padded holder address.
	if len(caller.lastCall.Data) != 36 {
		t.Fatalf("unexpected calldata length: %d", len(caller.lastCall.Data))
	}
}

func TestTokenBalanceCallFailure(t *testing.T) {
	caller := &fakeCaller{callErr: errors.New("rpc down")}
	client, err := newClient("sepolia", "", caller)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = client.TokenBalance(context.Background(), common.Address{}, common.Address{})
	if err == nil {
		t.Fatalf("expected error when eth_call fails")
	}
}

func TestFetchChainSnapshot(t *testing.T) {
	caller := &fakeCaller{balance: big.NewInt(0), chainID: big.NewInt(11155111), block: 1024}
	client, err := newClient("sepolia", "test chain", caller)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	snapshot, err := client.FetchChainSnapshot(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snapshot.ChainID != "0xaa36a7" {
		t.Fatalf("unexpected chain id: %q", snapshot.ChainID)
	}
	if snapshot.BlockNumber != "0x400" {
		t.Fatalf("unexpected block number: %q", snapshot.BlockNumber)
	}
	if snapshot.Notes != "test chain" {
		t.Fatalf("unexpected notes: %q", snapshot.Notes)
	}
}
