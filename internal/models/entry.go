package models

// FrontierEntry 表示队列中的一个待爬条目
// 用途:
//   - 在Frontier和worker之间传递归一化URL及其上下文
//   - Domain为种子的可注册域名,用于按域调度和预算核算
type FrontierEntry struct {
	// URL 归一化后的完整URL
	URL string

	// Domain 来源种子的可注册域名
	Domain string

	// Depth 距离种子的跳数
	//   - 0: 种子URL
	//   - 1: 从种子页面发现的链接
	//   - 以此类推...
	Depth int
}
