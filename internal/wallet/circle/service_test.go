package circle

import (
	"context"
	"errors"
	"testing"
	"time"

	xerrors "DustMite-Agent/internal/errors"
	"DustMite-Agent/internal/storage/mysql"
	"DustMite-Agent/internal/wallet"
)

func walletTransfer(amount string) wallet.TransferRequest {
	return wallet.TransferRequest{
		TokenAddress: "0xtoken",
		Destination:  "0xdest",
		Amount:       amount,
	}
}

type fakeCreator struct {
	created     *CreatedWallet
	createErr   error
	createCalls int

	txID        string
	transferErr error
	lastWallet  string
	lastAmount  string
}

func (f *fakeCreator) CreateWallet(_ context.Context) (*CreatedWallet, error) {
	f.createCalls++
	if f.createErr != nil {
		return nil, f.createErr
	}
	return f.created, nil
}

func (f *fakeCreator) Transfer(_ context.Context, walletID, _, _, amount string) (string, error) {
	f.lastWallet = walletID
	f.lastAmount = amount
	if f.transferErr != nil {
		return "", f.transferErr
	}
	return f.txID, nil
}

func newTestService(t *testing.T, creator *fakeCreator) *Service {
	t.Helper()
	repo, err := mysql.NewMemoryWalletRepository(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return &Service{client: creator, repo: repo, now: time.Now}
}

func TestEnsureWalletCreatesOnce(t *testing.T) {
	creator := &fakeCreator{created: &CreatedWallet{ID: "wallet-1", Address: "0xabc", Blockchain: "ETH-SEPOLIA"}}
	svc := newTestService(t, creator)

	first, err := svc.EnsureWallet(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := svc.EnsureWallet(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if creator.createCalls != 1 {
		t.Fatalf("expected exactly one provider call, got %d", creator.createCalls)
	}
	if first.ProviderWalletID != "wallet-1" || second.ProviderWalletID != "wallet-1" {
		t.Fatalf("wallet mismatch: %+v vs %+v", first, second)
	}
}

func TestEnsureWalletProvisioningFailure(t *testing.T) {
	creator := &fakeCreator{createErr: errors.New("provider down")}
	svc := newTestService(t, creator)

	_, err := svc.EnsureWallet(context.Background())
	if err == nil {
		t.Fatalf("expected error when provider fails")
	}
	if xerrors.CodeOf(err) != xerrors.CodeProvisioningFailure {
		t.Fatalf("unexpected error code: %v", xerrors.CodeOf(err))
	}
}

func TestTransferUsesStoredWallet(t *testing.T) {
	creator := &fakeCreator{
		created: &CreatedWallet{ID: "wallet-9", Address: "0xabc", Blockchain: "ETH-SEPOLIA"},
		txID:    "tx-1",
	}
	svc := newTestService(t, creator)

	txID, err := svc.Transfer(context.Background(), walletTransfer("100"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if txID != "tx-1" {
		t.Fatalf("unexpected tx id: %q", txID)
	}
	if creator.lastWallet != "wallet-9" {
		t.Fatalf("transfer used wrong wallet: %q", creator.lastWallet)
	}
	if creator.lastAmount != "100" {
		t.Fatalf("transfer used wrong amount: %q", creator.lastAmount)
	}
}

func TestTransferExecutionFailure(t *testing.T) {
	creator := &fakeCreator{
		created:     &CreatedWallet{ID: "wallet-9", Address: "0xabc", Blockchain: "ETH-SEPOLIA"},
		transferErr: errors.New("insufficient gas"),
	}
	svc := newTestService(t, creator)

	_, err := svc.Transfer(context.Background(), walletTransfer("5"))
	if err == nil {
		t.Fatalf("expected error when transfer fails")
	}
	if xerrors.CodeOf(err) != xerrors.CodeExecutionFailure {
		t.Fatalf("unexpected error code: %v", xerrors.CodeOf(err))
	}
}
