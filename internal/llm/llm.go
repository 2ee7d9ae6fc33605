package llm

import "context"

// DecisionRequest 描述一次资金调度决策所需的市场上下文。
type DecisionRequest struct {
	APY        float64
	GasCostUSD float64
	Sentiment  string
	Policies   []PolicyCard
}

// Decision 是大模型给出的调度建议。Action 取值由编排层归一化，
// 这里只原样传递模型输出。
type Decision struct {
	Action string
	Reason string
}

// PolicyCard 表示提供给大模型的一条资金管理策略，帮助生成更稳健的建议。
type PolicyCard struct {
	Title   string
	Content string
}

// HistoryEntry 描述一条历史审计记录，用于为解释类问答提供上下文记忆。
type HistoryEntry struct {
	Timestamp   int64
	Action      string
	Amount      string
	Reason      string
	APYSnapshot float64
	TxHash      string
}

// Client 定义了调用大模型的统一接口。
type Client interface {
	// Decide 请求模型在当前市场条件下给出 BUY/HOLD 建议。
	Decide(ctx context.Context, req DecisionRequest) (*Decision, error)
	// Explain 基于最近的审计记录回答用户的自由提问。
	Explain(ctx context.Context, question string, history []HistoryEntry) (string, error)
}
