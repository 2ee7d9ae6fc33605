// Package wallet 定义托管钱包的领域类型与最小接口。
package wallet

import "context"

// Wallet 表示一个由托管服务商管理的链上钱包。
type Wallet struct {
	// ProviderWalletID 是托管服务商侧的钱包标识。
	ProviderWalletID string
	// Address 是链上地址。
	Address string
	// Blockchain 是托管服务商的链标识, 例如 ETH-SEPOLIA。
	Blockchain string
}

// TransferRequest 描述一次链上转账。
type TransferRequest struct {
	// TokenAddress 为被转移代币的合约地址。
	TokenAddress string
	// Destination 为目标地址。
	Destination string
	// Amount 为十进制字符串表示的金额, 例如 "100.5"。
	Amount string
}

// Provisioner 保证托管钱包存在, 重复调用幂等。
type Provisioner interface {
	EnsureWallet(ctx context.Context) (*Wallet, error)
}

// TransferExecutor 发起一笔托管转账并返回交易标识。
type TransferExecutor interface {
	Transfer(ctx context.Context, req TransferRequest) (string, error)
}
