// Package treasury 实现自治资金管理的核心决策周期:
// 读取稳定币余额, 评估收益与成本, 请求大模型决策, 并在有利可图时
// 通过托管钱包把闲置资金转入生息资产。每个周期的结果都会落库审计。
package treasury
