package circle

import (
	"context"
	"errors"
	"time"

	xerrors "DustMite-Agent/internal/errors"
	"DustMite-Agent/internal/storage/mysql"
	"DustMite-Agent/internal/wallet"
	"DustMite-Agent/pkg/logger"
)

// walletCreator 是 Service 依赖的最小 Circle 能力, 便于测试注入。
type walletCreator interface {
	CreateWallet(ctx context.Context) (*CreatedWallet, error)
	Transfer(ctx context.Context, walletID, tokenAddress, destination, amount string) (string, error)
}

// Service 在 Circle 客户端之上提供幂等的钱包保障与转账能力。
// 是否已建钱包以数据库为准, 避免重复创建托管钱包。
type Service struct {
	client walletCreator
	repo   mysql.WalletRepository
	now    func() time.Time
}

// NewService 组装钱包服务。
func NewService(client *Client, repo mysql.WalletRepository) *Service {
	return &Service{client: client, repo: repo, now: time.Now}
}

// EnsureWallet 返回托管钱包, 不存在时先创建再落库。
func (s *Service) EnsureWallet(ctx context.Context) (*wallet.Wallet, error) {
	record, err := s.repo.Get(ctx)
	if err == nil {
		return &wallet.Wallet{
			ProviderWalletID: record.ProviderWalletID,
			Address:          record.Address,
			Blockchain:       record.Blockchain,
		}, nil
	}
	if !errors.Is(err, mysql.ErrWalletNotFound) {
		return nil, xerrors.Wrap(xerrors.CodeProvisioningFailure, err, "读取钱包记录失败")
	}

	created, err := s.client.CreateWallet(ctx)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeProvisioningFailure, err, "创建托管钱包失败")
	}

	record = mysql.WalletRecord{
		ProviderWalletID: created.ID,
		Address:          created.Address,
		Blockchain:       created.Blockchain,
		CreatedAt:        s.now().Unix(),
	}
	if err := s.repo.Save(ctx, record); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeProvisioningFailure, err, "保存钱包记录失败")
	}

	logger.L().Info("托管钱包已创建",
		"wallet_id", created.ID,
		"address", created.Address,
		"blockchain", created.Blockchain,
	)

	return &wallet.Wallet{
		ProviderWalletID: created.ID,
		Address:          created.Address,
		Blockchain:       created.Blockchain,
	}, nil
}

// Transfer 使用托管钱包发起代币转账。
func (s *Service) Transfer(ctx context.Context, req wallet.TransferRequest) (string, error) {
	managed, err := s.EnsureWallet(ctx)
	if err != nil {
		return "", err
	}

	txID, err := s.client.Transfer(ctx, managed.ProviderWalletID, req.TokenAddress, req.Destination, req.Amount)
	if err != nil {
		return "", xerrors.Wrap(xerrors.CodeExecutionFailure, err, "发起托管转账失败")
	}
	return txID, nil
}

var (
	_ wallet.Provisioner      = (*Service)(nil)
	_ wallet.TransferExecutor = (*Service)(nil)
)
