package treasury

import (
	"fmt"
	"strings"

	"DustMite-Agent/internal/llm"
)

// 审计记录中允许出现的动作。SELL 目前只在历史数据中存在。
const (
	ActionBuy  = "BUY"
	ActionHold = "HOLD"
	ActionSell = "SELL"
)

// normalizeDecision 把模型输出收敛为合法动作。模型调用失败或输出
// 不在 BUY/HOLD 之内时一律降级为 HOLD, 并把原因改写为可审计的说明。
func normalizeDecision(decision *llm.Decision, err error) llm.Decision {
	if err != nil {
		return llm.Decision{
			Action: ActionHold,
			Reason: fmt.Sprintf("decision engine unavailable, defaulting to HOLD: %v", err),
		}
	}
	if decision == nil {
		return llm.Decision{
			Action: ActionHold,
			Reason: "decision engine returned nothing, defaulting to HOLD",
		}
	}

	action := strings.ToUpper(strings.TrimSpace(decision.Action))
	reason := strings.TrimSpace(decision.Reason)
	if reason == "" {
		reason = "no reason provided"
	}

	switch action {
	case ActionBuy, ActionHold:
		return llm.Decision{Action: action, Reason: reason}
	default:
		return llm.Decision{
			Action: ActionHold,
			Reason: fmt.Sprintf("unrecognized action %q, defaulting to HOLD: %s", decision.Action, reason),
		}
	}
}
