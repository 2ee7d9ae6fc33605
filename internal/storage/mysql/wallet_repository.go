package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// WalletRecord 表示托管钱包的落库结构。整个系统只持有一个钱包。
type WalletRecord struct {
	ProviderWalletID string
	Address          string
	Blockchain       string
	CreatedAt        int64
}

// ErrWalletNotFound 表示尚未创建托管钱包。
var ErrWalletNotFound = errors.New("托管钱包尚未创建")

// WalletRepository 抽象钱包信息的持久化接口。
type WalletRepository interface {
	Get(ctx context.Context) (WalletRecord, error)
	Save(ctx context.Context, record WalletRecord) error
}

// MemoryWalletRepository 将钱包信息保存在本地 JSON 文件中。
type MemoryWalletRepository struct {
	mu       sync.RWMutex
	dataFile string
	record   *WalletRecord
}

// NewMemoryWalletRepository 创建一个基于文件的钱包仓库。
func NewMemoryWalletRepository(dataDir string) (*MemoryWalletRepository, error) {
	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("创建数据目录失败: %w", err)
	}
	path := filepath.Join(dataDir, "wallet.json")
	repo := &MemoryWalletRepository{dataFile: path}
	if err := repo.loadFromDisk(); err != nil {
		return nil, err
	}
	return repo, nil
}

// Get 返回已保存的钱包信息。
func (m *MemoryWalletRepository) Get(_ context.Context) (WalletRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.record == nil {
		return WalletRecord{}, ErrWalletNotFound
	}
	return *m.record, nil
}

// Save 覆盖写入钱包信息。
func (m *MemoryWalletRepository) Save(_ context.Context, record WalletRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	encoded, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("序列化钱包记录失败: %w", err)
	}
	if err := os.WriteFile(m.dataFile, append(encoded, '\n'), 0o644); err != nil {
		return fmt.Errorf("写入钱包记录失败: %w", err)
	}

	m.record = &record
	return nil
}

func (m *MemoryWalletRepository) loadFromDisk() error {
	content, err := os.ReadFile(m.dataFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("读取钱包记录失败: %w", err)
	}
	if len(content) == 0 {
		return nil
	}

	var record WalletRecord
	if err := json.Unmarshal(content, &record); err != nil {
		return fmt.Errorf("解析钱包记录失败: %w", err)
	}
	m.record = &record
	return nil
}

// SQLWalletRepository 使用真实的 MySQL 数据库存储钱包信息。
type SQLWalletRepository struct {
	db *sql.DB
}

// NewSQLWalletRepository 创建连接池并初始化数据表。
func NewSQLWalletRepository(ctx context.Context, cfg Config) (*SQLWalletRepository, error) {
	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return nil, err
	}

	repo := &SQLWalletRepository{db: db}
	if err := repo.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return repo, nil
}

// NewSQLWalletRepositoryWithDB 复用已有连接池, 避免为每张表各开一个池。
func NewSQLWalletRepositoryWithDB(ctx context.Context, db *sql.DB) (*SQLWalletRepository, error) {
	repo := &SQLWalletRepository{db: db}
	if err := repo.initSchema(ctx); err != nil {
		return nil, err
	}
	return repo, nil
}

func (s *SQLWalletRepository) initSchema(ctx context.Context) error {
	const schema = `CREATE TABLE IF NOT EXISTS wallets (
        id BIGINT AUTO_INCREMENT PRIMARY KEY,
        provider_wallet_id VARCHAR(64) NOT NULL,
        address VARCHAR(64) NOT NULL,
        blockchain VARCHAR(32) NOT NULL,
        created_at BIGINT NOT NULL
)`

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("初始化 wallets 表失败: %w", err)
	}
	return nil
}

// Get 返回最早创建的钱包记录。
func (s *SQLWalletRepository) Get(ctx context.Context) (WalletRecord, error) {
	const query = `SELECT provider_wallet_id, address, blockchain, created_at
        FROM wallets ORDER BY id ASC LIMIT 1`

	var record WalletRecord
	err := s.db.QueryRowContext(ctx, query).Scan(
		&record.ProviderWalletID,
		&record.Address,
		&record.Blockchain,
		&record.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return WalletRecord{}, ErrWalletNotFound
	}
	if err != nil {
		return WalletRecord{}, fmt.Errorf("查询钱包记录失败: %w", err)
	}
	return record, nil
}

// Save 写入钱包记录。
func (s *SQLWalletRepository) Save(ctx context.Context, record WalletRecord) error {
	const stmt = `INSERT INTO wallets (provider_wallet_id, address, blockchain, created_at)
        VALUES (?, ?, ?, ?)`

	if _, err := s.db.ExecContext(ctx, stmt,
		record.ProviderWalletID,
		record.Address,
		record.Blockchain,
		record.CreatedAt,
	); err != nil {
		return fmt.Errorf("写入钱包记录失败: %w", err)
	}
	return nil
}

// Close 关闭底层数据库连接。
func (s *SQLWalletRepository) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
