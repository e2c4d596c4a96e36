package models

// CrawlStats 爬取运行统计
type CrawlStats struct {
	SeedDomains   int     `json:"seed_domains"`    // 种子域名数
	PagesVisited  int     `json:"pages_visited"`   // 成功渲染的页面数
	PagesFailed   int     `json:"pages_failed"`    // 重试耗尽后放弃的页面数
	PagesSkipped  int     `json:"pages_skipped"`   // 因预算/robots被跳过的页面数
	LinksSeen     int     `json:"links_seen"`      // 提取到的链接总数
	LinksEnqueued int     `json:"links_enqueued"`  // 通过新颖性检查入队的链接数
	ProductURLs   int     `json:"product_urls"`    // 去重后的商品URL数
	Duration      float64 `json:"duration"`        // 总耗时(秒)
	StopReason    string  `json:"stop_reason"`     // 结束原因(exhausted|budget|cancelled)
}

// 运行结束原因
const (
	StopExhausted = "exhausted" // Frontier耗尽,自然结束
	StopBudget    = "budget"    // 全局预算(页面数/时长)触顶
	StopCancelled = "cancelled" // 外部取消(信号)
)
