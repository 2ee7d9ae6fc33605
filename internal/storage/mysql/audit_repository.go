package mysql

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// CycleRecord 表示一次资金调度周期的审计落库结构。
type CycleRecord struct {
	Timestamp      int64
	Action         string
	Amount         string
	Reason         string
	SentimentScore float64
	APYSnapshot    float64
	// TxHash 仅在转账成功时存在。
	TxHash *string
}

// AuditRepository 抽象审计记录的持久化接口。
type AuditRepository interface {
	Append(ctx context.Context, record CycleRecord) error
	ListLatest(ctx context.Context, limit int) ([]CycleRecord, error)
}

// ErrUnsupportedDriver 在配置了未知存储驱动时返回。
var ErrUnsupportedDriver = errors.New("暂不支持的存储驱动")

// MemoryAuditRepository 使用本地 JSON 行文件模拟 MySQL 的效果，方便迭代开发。
type MemoryAuditRepository struct {
	mu       sync.RWMutex
	dataFile string
	records  []CycleRecord
}

// NewMemoryAuditRepository 创建一个基于文件的审计仓库。
func NewMemoryAuditRepository(dataDir string) (*MemoryAuditRepository, error) {
	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("创建数据目录失败: %w", err)
	}
	path := filepath.Join(dataDir, "cycles.log")
	repo := &MemoryAuditRepository{dataFile: path}
	if err := repo.loadFromDisk(); err != nil {
		return nil, err
	}
	return repo, nil
}

// Append 以追加写的方式记录周期结果。
func (m *MemoryAuditRepository) Append(_ context.Context, record CycleRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	file, err := os.OpenFile(m.dataFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("打开审计日志失败: %w", err)
	}
	defer file.Close()

	encoded, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("序列化审计记录失败: %w", err)
	}

	if _, err := file.Write(append(encoded, '\n')); err != nil {
		return fmt.Errorf("写入审计日志失败: %w", err)
	}

	m.records = append([]CycleRecord{record}, m.records...)
	if len(m.records) > 512 {
		m.records = m.records[:512]
	}
	return nil
}

// ListLatest 返回最近的审计记录，按时间倒序排列。
func (m *MemoryAuditRepository) ListLatest(_ context.Context, limit int) ([]CycleRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if limit <= 0 || limit > len(m.records) {
		limit = len(m.records)
	}

	results := make([]CycleRecord, limit)
	copy(results, m.records[:limit])
	return results, nil
}

func (m *MemoryAuditRepository) loadFromDisk() error {
	file, err := os.OpenFile(m.dataFile, os.O_RDONLY|os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("读取审计日志失败: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	var restored []CycleRecord
	for scanner.Scan() {
		var record CycleRecord
		if err := json.Unmarshal(scanner.Bytes(), &record); err != nil {
			continue
		}
		restored = append([]CycleRecord{record}, restored...)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("解析审计日志失败: %w", err)
	}

	if len(restored) > 512 {
		restored = restored[:512]
	}
	if len(restored) > 0 {
		m.records = restored
	}
	return nil
}

// SQLAuditRepository 使用真实的 MySQL 数据库存储审计记录。
type SQLAuditRepository struct {
	db *sql.DB
}

// NewSQLAuditRepository 创建连接池并初始化数据表。
func NewSQLAuditRepository(ctx context.Context, cfg Config) (*SQLAuditRepository, error) {
	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return nil, err
	}

	repo := &SQLAuditRepository{db: db}
	if err := repo.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return repo, nil
}

func (s *SQLAuditRepository) initSchema(ctx context.Context) error {
	const schema = `CREATE TABLE IF NOT EXISTS cycle_audit (
        id BIGINT AUTO_INCREMENT PRIMARY KEY,
        timestamp BIGINT NOT NULL,
        action VARCHAR(16) NOT NULL,
        amount VARCHAR(78) NOT NULL,
        reason TEXT NOT NULL,
        sentiment_score DOUBLE NOT NULL,
        apy_snapshot DOUBLE NOT NULL,
        tx_hash VARCHAR(128) DEFAULT NULL,
        INDEX idx_timestamp (timestamp)
)`

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("初始化 cycle_audit 表失败: %w", err)
	}
	return nil
}

// Append 将审计记录写入 MySQL。
func (s *SQLAuditRepository) Append(ctx context.Context, record CycleRecord) error {
	const stmt = `INSERT INTO cycle_audit
        (timestamp, action, amount, reason, sentiment_score, apy_snapshot, tx_hash)
        VALUES (?, ?, ?, ?, ?, ?, ?)`

	var txHash sql.NullString
	if record.TxHash != nil {
		txHash = sql.NullString{String: *record.TxHash, Valid: true}
	}

	if _, err := s.db.ExecContext(ctx, stmt,
		record.Timestamp,
		record.Action,
		record.Amount,
		record.Reason,
		record.SentimentScore,
		record.APYSnapshot,
		txHash,
	); err != nil {
		return fmt.Errorf("写入 MySQL 失败: %w", err)
	}
	return nil
}

// ListLatest 查询最近的若干条审计记录。
func (s *SQLAuditRepository) ListLatest(ctx context.Context, limit int) ([]CycleRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `SELECT timestamp, action, amount, reason, sentiment_score, apy_snapshot, tx_hash
        FROM cycle_audit ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("查询审计记录失败: %w", err)
	}
	defer rows.Close()

	var records []CycleRecord
	for rows.Next() {
		var record CycleRecord
		var txHash sql.NullString
		if err := rows.Scan(&record.Timestamp, &record.Action, &record.Amount, &record.Reason, &record.SentimentScore, &record.APYSnapshot, &txHash); err != nil {
			return nil, fmt.Errorf("解析审计记录失败: %w", err)
		}
		if txHash.Valid {
			value := txHash.String
			record.TxHash = &value
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("遍历审计记录失败: %w", err)
	}

	return records, nil
}

// Close 关闭底层数据库连接。
func (s *SQLAuditRepository) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
