package treasury

import (
	"context"
	"errors"
	"math/big"
	"strconv"
	"strings"
	"time"

	xerrors "DustMite-Agent/internal/errors"
	"DustMite-Agent/internal/events"
	"DustMite-Agent/internal/knowledge"
	"DustMite-Agent/internal/llm"
	"DustMite-Agent/internal/market"
	"DustMite-Agent/internal/observability/alerting"
	"DustMite-Agent/internal/observability/metrics"
	"DustMite-Agent/internal/storage/mysql"
	"DustMite-Agent/internal/wallet"
	"DustMite-Agent/internal/web3"
	"DustMite-Agent/pkg/logger"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// 周期结果分类, 同时作为指标标签。
const (
	OutcomeCompleted   = "completed"
	OutcomeSkippedDust = "skipped_dust"
	OutcomeFailed      = "failed"
)

const (
	statusHistoryLimit = 5
	chatHistoryLimit   = 3
)

const chatFallbackReply = "I'm having trouble reaching my reasoning engine right now. Please try again in a moment."

// Config 描述决策周期的业务参数。
type Config struct {
	// DustThreshold 以下的余额不值得迁移。
	DustThreshold float64
	// GasCostEstimateUSD 是保守的单笔转账成本估计。
	GasCostEstimateUSD float64
	// TokenAddress 是被管理稳定币的合约地址。
	TokenAddress string
	// TokenDecimals 是稳定币精度, USDC 为 6。
	TokenDecimals int
	// YieldTokenAddress 是生息资产的合约地址, 同时作为转账目标。
	YieldTokenAddress string
	// PolicyTopics 用于从策略库中检索决策约束。
	PolicyTopics []string
}

// Dependencies 汇总周期所需的全部协作方。
type Dependencies struct {
	Provisioner wallet.Provisioner
	Transfers   wallet.TransferExecutor
	Chain       web3.Client
	Market      market.Provider
	Brain       llm.Client
	Audit       mysql.AuditRepository
	Wallets     mysql.WalletRepository

	// 以下为可选依赖, 缺省时对应能力自动降级。
	Publisher events.Publisher
	Alerts    alerting.Dispatcher
	Policies  knowledge.Provider
}

// Agent 驱动完整的资金调度周期。所有依赖显式注入, 不持有全局状态。
type Agent struct {
	cfg  Config
	deps Dependencies
	now  func() time.Time
}

// CycleReport 描述一次周期的执行结果。
type CycleReport struct {
	CycleID        string
	Outcome        string
	Action         string
	Amount         string
	Reason         string
	APY            float64
	APYSource      string
	SentimentScore float64
	TxHash         *string
	StartedAt      time.Time
	Duration       time.Duration
}

// Status 是对外暴露的运行状态快照。
type Status struct {
	WalletAddress string
	Balance       string
	LastActivity  []mysql.CycleRecord
}

// NewAgent 校验依赖并创建 Agent。
func NewAgent(cfg Config, deps Dependencies) (*Agent, error) {
	if deps.Provisioner == nil || deps.Transfers == nil {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "缺少钱包服务依赖")
	}
	if deps.Chain == nil {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "缺少链上客户端依赖")
	}
	if deps.Market == nil {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "缺少行情依赖")
	}
	if deps.Brain == nil {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "缺少决策模型依赖")
	}
	if deps.Audit == nil || deps.Wallets == nil {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "缺少存储依赖")
	}
	if strings.TrimSpace(cfg.TokenAddress) == "" {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "未配置稳定币合约地址")
	}
	if strings.TrimSpace(cfg.YieldTokenAddress) == "" {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "未配置生息资产合约地址")
	}
	if cfg.TokenDecimals <= 0 {
		cfg.TokenDecimals = 6
	}
	if cfg.DustThreshold <= 0 {
		cfg.DustThreshold = 1.0
	}
	if cfg.GasCostEstimateUSD <= 0 {
		cfg.GasCostEstimateUSD = 0.05
	}

	return &Agent{cfg: cfg, deps: deps, now: time.Now}, nil
}

// RunCycle 执行一次完整的决策周期并返回结果报告。
// 周期内部的局部故障按各自策略降级, 只有无法继续的错误才会返回。
func (a *Agent) RunCycle(ctx context.Context) (*CycleReport, error) {
	started := a.now()
	cycleID := uuid.NewString()

	report, err := a.runCycle(ctx, cycleID)
	duration := a.now().Sub(started)

	if err != nil {
		metrics.ObserveCycle(OutcomeFailed, duration)
		a.alert(ctx, cycleID, err)
		logger.L().Error("决策周期失败",
			"cycle_id", cycleID,
			"error", err,
		)
		return nil, err
	}

	report.StartedAt = started
	report.Duration = duration
	metrics.ObserveCycle(report.Outcome, duration)
	a.publish(ctx, report)
	return report, nil
}

func (a *Agent) runCycle(ctx context.Context, cycleID string) (*CycleReport, error) {
	managed, err := a.deps.Provisioner.EnsureWallet(ctx)
	if err != nil {
		if _, ok := xerrors.From(err); !ok {
			err = xerrors.Wrap(xerrors.CodeProvisioningFailure, err, "准备托管钱包失败")
		}
		return nil, err
	}
	logger.L().Info("托管钱包就绪", "cycle_id", cycleID, "address", managed.Address)

	// 余额读取失败按 0 处理, 让后续的灰尘检查安全地跳过本周期。
	raw, err := a.deps.Chain.TokenBalance(ctx,
		common.HexToAddress(a.cfg.TokenAddress),
		common.HexToAddress(managed.Address),
	)
	if err != nil {
		logger.L().Warn("读取余额失败, 按 0 处理", "cycle_id", cycleID, "error", err)
		raw = big.NewInt(0)
	}

	amount := web3.FormatUnits(raw, a.cfg.TokenDecimals)
	principal, err := strconv.ParseFloat(amount, 64)
	if err != nil {
		principal = 0
	}
	logger.L().Info("当前余额", "cycle_id", cycleID, "amount", amount)

	if principal < a.cfg.DustThreshold {
		logger.L().Info("余额低于灰尘阈值, 跳过本周期",
			"cycle_id", cycleID,
			"amount", amount,
			"threshold", a.cfg.DustThreshold,
		)
		return &CycleReport{
			CycleID: cycleID,
			Outcome: OutcomeSkippedDust,
			Action:  ActionHold,
			Amount:  amount,
			Reason:  "balance below dust threshold",
		}, nil
	}

	quote, err := a.deps.Market.GetYield(ctx)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeMarketDataFailure, err, "获取收益率行情失败")
	}
	logger.L().Info("行情快照", "cycle_id", cycleID, "apy", quote.APY, "source", quote.Source)

	sentiment := SentimentScore(quote.APY)
	profitable := IsProfitable(principal, quote.APY, a.cfg.GasCostEstimateUSD)
	logger.L().Info("盈利判断",
		"cycle_id", cycleID,
		"daily_yield", DailyYield(principal, quote.APY),
		"gas_cost", a.cfg.GasCostEstimateUSD,
		"profitable", profitable,
	)

	rawDecision, decideErr := a.deps.Brain.Decide(ctx, llm.DecisionRequest{
		APY:        quote.APY,
		GasCostUSD: a.cfg.GasCostEstimateUSD,
		Sentiment:  SentimentLabel(quote.APY),
		Policies:   a.policyCards(),
	})
	decision := normalizeDecision(rawDecision, decideErr)
	if decideErr != nil {
		logger.L().Warn("模型决策失败, 已降级为 HOLD", "cycle_id", cycleID, "error", decideErr)
	}
	logger.L().Info("模型决策", "cycle_id", cycleID, "action", decision.Action, "reason", decision.Reason)

	finalAction := ActionHold
	var txHash *string
	if decision.Action == ActionBuy && profitable {
		txID, transferErr := a.deps.Transfers.Transfer(ctx, wallet.TransferRequest{
			TokenAddress: a.cfg.TokenAddress,
			Destination:  a.cfg.YieldTokenAddress,
			Amount:       amount,
		})
		if transferErr != nil {
			// 执行失败回退为 HOLD, 周期继续, 但要触发告警。
			logger.L().Error("转账执行失败, 回退为 HOLD", "cycle_id", cycleID, "error", transferErr)
			a.alert(ctx, cycleID, transferErr)
		} else {
			finalAction = ActionBuy
			txHash = &txID
			logger.L().Info("转账已发起", "cycle_id", cycleID, "tx_id", txID)
		}
	}

	record := mysql.CycleRecord{
		Timestamp:      a.now().Unix(),
		Action:         finalAction,
		Amount:         amount,
		Reason:         decision.Reason,
		SentimentScore: sentiment,
		APYSnapshot:    quote.APY,
		TxHash:         txHash,
	}
	if err := a.deps.Audit.Append(ctx, record); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "写入审计记录失败")
	}
	logger.Audit().Info("周期审计",
		"cycle_id", cycleID,
		"action", finalAction,
		"amount", amount,
		"apy", quote.APY,
	)

	return &CycleReport{
		CycleID:        cycleID,
		Outcome:        OutcomeCompleted,
		Action:         finalAction,
		Amount:         amount,
		Reason:         decision.Reason,
		APY:            quote.APY,
		APYSource:      quote.Source,
		SentimentScore: sentiment,
		TxHash:         txHash,
	}, nil
}

func (a *Agent) policyCards() []llm.PolicyCard {
	if a.deps.Policies == nil {
		return nil
	}
	snippets := a.deps.Policies.Query(a.cfg.PolicyTopics...)
	cards := make([]llm.PolicyCard, 0, len(snippets))
	for _, snippet := range snippets {
		cards = append(cards, llm.PolicyCard{Title: snippet.Title, Content: snippet.Content})
	}
	return cards
}

func (a *Agent) alert(ctx context.Context, cycleID string, err error) {
	if a.deps.Alerts == nil || !xerrors.ShouldAlert(err) {
		return
	}
	event := alerting.Event{
		Code:       xerrors.CodeOf(err),
		Message:    err.Error(),
		Severity:   xerrors.SeverityOf(err),
		CycleID:    cycleID,
		OccurredAt: a.now(),
	}
	if notifyErr := a.deps.Alerts.Notify(ctx, event); notifyErr != nil {
		logger.L().Warn("发送告警失败", "cycle_id", cycleID, "error", notifyErr)
	}
}

func (a *Agent) publish(ctx context.Context, report *CycleReport) {
	if a.deps.Publisher == nil {
		return
	}
	event := events.CycleEvent{
		CycleID:     report.CycleID,
		Timestamp:   report.StartedAt.Unix(),
		Action:      report.Action,
		Amount:      report.Amount,
		Reason:      report.Reason,
		APYSnapshot: report.APY,
		Outcome:     report.Outcome,
	}
	if report.TxHash != nil {
		event.TxHash = *report.TxHash
	}
	if err := a.deps.Publisher.Publish(ctx, event); err != nil {
		// 事件广播是尽力而为, 失败不影响周期结果。
		logger.L().Warn("发布周期事件失败", "cycle_id", report.CycleID, "error", err)
	}
}

// Status 返回钱包地址、实时余额与最近的审计记录。
// 余额读取失败时降级为 "0", 不阻塞状态查询。
func (a *Agent) Status(ctx context.Context) (*Status, error) {
	address := "Not Created"
	balance := "0"

	record, err := a.deps.Wallets.Get(ctx)
	switch {
	case err == nil:
		address = record.Address
		raw, readErr := a.deps.Chain.TokenBalance(ctx,
			common.HexToAddress(a.cfg.TokenAddress),
			common.HexToAddress(record.Address),
		)
		if readErr != nil {
			logger.L().Warn("状态查询读取余额失败", "error", readErr)
		} else {
			balance = web3.FormatUnits(raw, a.cfg.TokenDecimals)
		}
	case errors.Is(err, mysql.ErrWalletNotFound):
		// 钱包尚未创建, 返回默认占位。
	default:
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "读取钱包记录失败")
	}

	activity, err := a.deps.Audit.ListLatest(ctx, statusHistoryLimit)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "读取审计记录失败")
	}

	return &Status{
		WalletAddress: address,
		Balance:       balance,
		LastActivity:  activity,
	}, nil
}

// Chat 基于最近的审计记录回答用户提问。模型不可用时返回固定致歉语。
func (a *Agent) Chat(ctx context.Context, message string) (string, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return "", xerrors.New(xerrors.CodeInvalidArgument, "消息不能为空")
	}

	records, err := a.deps.Audit.ListLatest(ctx, chatHistoryLimit)
	if err != nil {
		return "", xerrors.Wrap(xerrors.CodeStorageFailure, err, "读取审计记录失败")
	}

	history := make([]llm.HistoryEntry, 0, len(records))
	for _, record := range records {
		entry := llm.HistoryEntry{
			Timestamp:   record.Timestamp,
			Action:      record.Action,
			Amount:      record.Amount,
			Reason:      record.Reason,
			APYSnapshot: record.APYSnapshot,
		}
		if record.TxHash != nil {
			entry.TxHash = *record.TxHash
		}
		history = append(history, entry)
	}

	answer, err := a.deps.Brain.Explain(ctx, message, history)
	if err != nil {
		logger.L().Warn("问答模型调用失败, 返回兜底回复", "error", err)
		return chatFallbackReply, nil
	}
	return answer, nil
}
