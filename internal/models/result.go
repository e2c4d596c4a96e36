package models

// FailureKind 页面处理失败类型
type FailureKind string

const (
	FailureNavigation FailureKind = "navigation" // 导航超时或网络错误(瞬时,可重试)
	FailureCrashed    FailureKind = "crashed"    // 渲染上下文崩溃(瞬时,可重试)
	FailurePermanent  FailureKind = "permanent"  // URL格式错误/协议不支持/域名无法解析(不重试)
	FailureCancelled  FailureKind = "cancelled"  // 运行被取消
)

// PageFailure 结构化的页面失败信息
type PageFailure struct {
	Kind    FailureKind `json:"kind"`
	Message string      `json:"message"`
}

// PageResult 渲染单个FrontierEntry的结果
// 成功时携带页面提取到的链接集合;终态失败时Failure非空。
// Attempts记录实际尝试次数(含首次)。
type PageResult struct {
	URL      string   `json:"url"`       // 请求的URL
	FinalURL string   `json:"final_url"` // 重定向后的最终URL
	Title    string   `json:"title"`     // 页面标题
	Links    []string `json:"links"`     // 页面内去重后的绝对链接

	Failure  *PageFailure `json:"failure,omitempty"`
	Attempts int          `json:"attempts"`
}

// Failed 是否为终态失败
func (r *PageResult) Failed() bool {
	return r != nil && r.Failure != nil
}

// ProductRecord 单个页面产出的商品链接记录
// 以JSONL形式追加到结果文件,结构与计数按页面聚合。
type ProductRecord struct {
	Domain       string   `json:"domain"`
	ParentLink   string   `json:"parent_link"`
	Count        int      `json:"count"`
	ProductLinks []string `json:"product_links"`
}
