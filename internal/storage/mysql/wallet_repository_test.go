package mysql

import (
	"context"
	"errors"
	"testing"
)

func TestMemoryWalletRepositoryNotFound(t *testing.T) {
	repo, err := NewMemoryWalletRepository(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := repo.Get(context.Background()); !errors.Is(err, ErrWalletNotFound) {
		t.Fatalf("expected ErrWalletNotFound, got %v", err)
	}
}

func TestMemoryWalletRepositorySaveAndGet(t *testing.T) {
	dir := t.TempDir()

	repo, err := NewMemoryWalletRepository(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	record := WalletRecord{
		ProviderWalletID: "wallet-123",
		Address:          "0x00000000000000000000000000000000deadbeef",
		Blockchain:       "ETH-SEPOLIA",
		CreatedAt:        1700000000,
	}
	if err := repo.Save(context.Background(), record); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	got, err := repo.Get(context.Background())
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got != record {
		t.Fatalf("record mismatch: got %+v want %+v", got, record)
	}

	// A fresh repository over the same directory must see the stored wallet.
	reopened, err := NewMemoryWalletRepository(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	restored, err := reopened.Get(context.Background())
	if err != nil {
		t.Fatalf("get after reopen failed: %v", err)
	}
	if restored != record {
		t.Fatalf("restored record mismatch: got %+v want %+v", restored, record)
	}
}
