// Package mysql 提供审计记录与钱包信息的持久化实现。
// 默认使用本地 JSON 行文件, 生产环境可切换为真实 MySQL。
package mysql
