// Package circle 对接 Circle 开发者托管钱包 API。
package circle

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	defaultBaseURL = "https://api.circle.com"
	defaultTimeout = 30 * time.Second
)

// Config 描述调用 Circle API 所需的信息。
type Config struct {
	APIKey                 string
	EntitySecretCiphertext string
	BaseURL                string
	WalletSetID            string
	Blockchain             string
	Timeout                time.Duration
}

// Client 通过 HTTP 调用 Circle 的开发者托管钱包能力。
type Client struct {
	apiKey       string
	entitySecret string
	baseURL      string
	walletSetID  string
	blockchain   string
	httpClient   *http.Client
}

// CreatedWallet 表示新建钱包的关键信息。
type CreatedWallet struct {
	ID         string
	Address    string
	Blockchain string
}

// NewClient 根据配置创建 Circle 客户端。
func NewClient(cfg Config) (*Client, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("未提供 Circle API Key")
	}
	entitySecret := strings.TrimSpace(cfg.EntitySecretCiphertext)
	if entitySecret == "" {
		return nil, errors.New("未提供 Circle Entity Secret")
	}
	walletSetID := strings.TrimSpace(cfg.WalletSetID)
	if walletSetID == "" {
		return nil, errors.New("未提供 Circle Wallet Set ID")
	}

	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")

	blockchain := strings.TrimSpace(cfg.Blockchain)
	if blockchain == "" {
		blockchain = "ETH-SEPOLIA"
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Client{
		apiKey:       apiKey,
		entitySecret: entitySecret,
		baseURL:      baseURL,
		walletSetID:  walletSetID,
		blockchain:   blockchain,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// CreateWallet 创建一个 SCA 类型的托管钱包。
func (c *Client) CreateWallet(ctx context.Context) (*CreatedWallet, error) {
	body := map[string]any{
		"idempotencyKey":         uuid.NewString(),
		"entitySecretCiphertext": c.entitySecret,
		"walletSetId":            c.walletSetID,
		"blockchains":            []string{c.blockchain},
		"count":                  1,
		"accountType":            "SCA",
	}

	var decoded struct {
		Data struct {
			Wallets []struct {
				ID         string `json:"id"`
				Address    string `json:"address"`
				Blockchain string `json:"blockchain"`
			} `json:"wallets"`
		} `json:"data"`
	}
	if err := c.post(ctx, "/v1/w3s/developer/wallets", body, &decoded); err != nil {
		return nil, err
	}
	if len(decoded.Data.Wallets) == 0 {
		return nil, errors.New("Circle 响应中没有钱包数据")
	}

	created := decoded.Data.Wallets[0]
	if created.ID == "" || created.Address == "" {
		return nil, errors.New("Circle 返回的钱包信息不完整")
	}
	return &CreatedWallet{
		ID:         created.ID,
		Address:    created.Address,
		Blockchain: created.Blockchain,
	}, nil
}

// Transfer 从指定托管钱包发起一笔代币转账, 返回交易标识。
func (c *Client) Transfer(ctx context.Context, walletID, tokenAddress, destination, amount string) (string, error) {
	if strings.TrimSpace(walletID) == "" {
		return "", errors.New("转账缺少钱包标识")
	}
	if strings.TrimSpace(amount) == "" {
		return "", errors.New("转账金额不能为空")
	}

	body := map[string]any{
		"idempotencyKey":         uuid.NewString(),
		"entitySecretCiphertext": c.entitySecret,
		"walletId":               walletID,
		"tokenAddress":           tokenAddress,
		"blockchain":             c.blockchain,
		"destinationAddress":     destination,
		"amounts":                []string{amount},
		"feeLevel":               "MEDIUM",
	}

	var decoded struct {
		Data struct {
			ID    string `json:"id"`
			State string `json:"state"`
		} `json:"data"`
	}
	if err := c.post(ctx, "/v1/w3s/developer/transactions/transfer", body, &decoded); err != nil {
		return "", err
	}
	if decoded.Data.ID == "" {
		return "", errors.New("Circle 响应中没有交易标识")
	}
	return decoded.Data.ID, nil
}

func (c *Client) post(ctx context.Context, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("序列化 Circle 请求失败: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("构建 Circle 请求失败: %w", err)
	}

	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("请求 Circle 失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("Circle 返回错误状态 %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("解析 Circle 响应失败: %w", err)
	}
	return nil
}
