package treasury

// DailyYield 按单利估算本金一天产生的收益。
func DailyYield(principal, apy float64) float64 {
	return principal * (apy / 100) / 365
}

// IsProfitable 判断迁移资金是否划算: 单日收益必须严格大于 gas 成本。
// 恰好打平视为不划算。
func IsProfitable(principal, apy, gasCostUSD float64) bool {
	return DailyYield(principal, apy)-gasCostUSD > 0
}

// SentimentScore 从收益率派生市场情绪分: 高于 6% 视为乐观。
func SentimentScore(apy float64) float64 {
	if apy > 6.0 {
		return 0.8
	}
	return 0.4
}

// SentimentLabel 返回与情绪分对应的文字描述, 用于提示词。
func SentimentLabel(apy float64) string {
	if apy > 6.0 {
		return "Optimistic"
	}
	return "Cautious"
}
