package llm

import (
	"fmt"
	"strings"
	"time"
)

// DecisionSystemPrompt 约束模型扮演保守的资金管理角色并输出紧凑 JSON。
const DecisionSystemPrompt = "" +
	"You are a risk-averse treasury manager for an autonomous agent. " +
	"Always respond with a compact JSON object: {\"action\": \"BUY\"|\"HOLD\", \"reason\": string}. " +
	"Never include any other keys or surrounding prose."

// BuildDecisionPrompt 构造资金调度决策的用户提示词。
func BuildDecisionPrompt(req DecisionRequest) string {
	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("Current APY is %.2f%%.\n", req.APY))
	builder.WriteString(fmt.Sprintf("Estimated gas cost is $%.2f.\n", req.GasCostUSD))
	if sentiment := strings.TrimSpace(req.Sentiment); sentiment != "" {
		builder.WriteString(fmt.Sprintf("Market sentiment is %s.\n", sentiment))
	}

	if len(req.Policies) > 0 {
		builder.WriteString("\nTreasury policies to respect:\n")
		for idx, card := range req.Policies {
			builder.WriteString(fmt.Sprintf("[%d] %s: %s\n",
				idx+1,
				strings.TrimSpace(card.Title),
				truncate(card.Content),
			))
			if idx >= 4 {
				break
			}
		}
	}

	builder.WriteString("\nShould I move the idle stablecoin balance into the yield-bearing token? ")
	builder.WriteString("Respond JSON: {\"action\": \"BUY\"|\"HOLD\", \"reason\": \"...\"}")
	return builder.String()
}

// BuildExplainPrompt 构造基于历史审计记录的问答提示词。
func BuildExplainPrompt(question string, history []HistoryEntry) string {
	var builder strings.Builder
	builder.WriteString("Context: here are my most recent treasury decisions:\n")
	if len(history) == 0 {
		builder.WriteString("(no recorded decisions yet)\n")
	}
	for idx, entry := range history {
		ts := time.Unix(entry.Timestamp, 0).UTC().Format(time.RFC3339)
		builder.WriteString(fmt.Sprintf("[%d] %s | action:%s | amount:%s | apy:%.2f%% | reason:%s",
			idx+1,
			ts,
			entry.Action,
			entry.Amount,
			entry.APYSnapshot,
			truncate(entry.Reason),
		))
		if entry.TxHash != "" {
			builder.WriteString(fmt.Sprintf(" | tx:%s", entry.TxHash))
		}
		builder.WriteString("\n")
	}

	builder.WriteString(fmt.Sprintf("\nUser question: %q\n", strings.TrimSpace(question)))
	builder.WriteString("\nPlease explain your reasoning to the user based on the context provided.")
	return builder.String()
}

func truncate(text string) string {
	text = strings.TrimSpace(text)
	if len([]rune(text)) > 120 {
		return string([]rune(text)[:120]) + "..."
	}
	return text
}

// StripCodeFence 去掉模型偶尔包裹在 JSON 外层的 Markdown 代码块标记。
func StripCodeFence(content string) string {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, "```") {
		return content
	}
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	return strings.TrimSpace(content)
}
