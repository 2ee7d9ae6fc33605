// Package market 提供收益率行情的抽象与若干内置实现。
package market

import (
	"context"
	"math"
	"math/rand"
	"sync"

	xerrors "DustMite-Agent/internal/errors"
)

// YieldQuote 表示一次收益率快照。
type YieldQuote struct {
	// APY 为年化收益率百分比, 例如 5.25 表示 5.25%。
	APY float64
	// Source 标记行情来源, 便于审计与日志排查。
	Source string
}

// Provider 定义收益率行情的最小读取接口。
type Provider interface {
	GetYield(ctx context.Context) (YieldQuote, error)
}

// MockProvider 在给定区间内生成随机收益率, 用于本地开发与测试。
type MockProvider struct {
	mu  sync.Mutex
	rng *rand.Rand

	minAPY float64
	maxAPY float64
}

// NewMockProvider 创建一个在 [minAPY, maxAPY] 区间内取值的模拟行情源。
func NewMockProvider(minAPY, maxAPY float64, seed int64) (*MockProvider, error) {
	if minAPY < 0 || maxAPY < minAPY {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "非法的收益率区间")
	}
	return &MockProvider{
		rng:    rand.New(rand.NewSource(seed)),
		minAPY: minAPY,
		maxAPY: maxAPY,
	}, nil
}

// GetYield 返回区间内均匀分布的随机收益率, 保留两位小数。
func (p *MockProvider) GetYield(_ context.Context) (YieldQuote, error) {
	p.mu.Lock()
	sample := p.minAPY + p.rng.Float64()*(p.maxAPY-p.minAPY)
	p.mu.Unlock()

	return YieldQuote{
		APY:    math.Round(sample*100) / 100,
		Source: "MockMarket",
	}, nil
}

// StaticProvider 返回固定的收益率, 作为尚未接入真实行情前的占位实现。
type StaticProvider struct {
	apy float64
}

// NewStaticProvider 创建固定收益率行情源。
func NewStaticProvider(apy float64) *StaticProvider {
	return &StaticProvider{apy: apy}
}

// GetYield 返回固定收益率。
func (p *StaticProvider) GetYield(_ context.Context) (YieldQuote, error) {
	return YieldQuote{APY: p.apy, Source: "RealMarketStub"}, nil
}

var (
	_ Provider = (*MockProvider)(nil)
	_ Provider = (*StaticProvider)(nil)
)
