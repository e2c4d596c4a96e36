package models

import (
	"fmt"
	"time"
)

// CrawlConfig 爬取配置
type CrawlConfig struct {
	// 并发配置
	MaxWorkers int  `mapstructure:"max_workers" json:"max_workers"` // 最大并发worker数 (默认:8)
	AutoScale  bool `mapstructure:"auto_scale" json:"auto_scale"`   // 根据系统资源自动确定初始并发 (默认:true)

	// 爬取范围限制
	MaxDepth          int `mapstructure:"max_depth" json:"max_depth"`                       // 最大爬取深度,种子为深度0,0表示只爬种子页面 (默认:3)
	MaxPagesPerDomain int `mapstructure:"max_pages_per_domain" json:"max_pages_per_domain"` // 每个域名最大页面数,0表示不限制
	MaxTotalPages     int `mapstructure:"max_total_pages" json:"max_total_pages"`           // 全局最大页面数,0表示不限制
	MaxElapsedMinutes int `mapstructure:"max_elapsed_minutes" json:"max_elapsed_minutes"`   // 全局最大运行时间(分钟),0表示不限制

	// 页面渲染配置
	NavigationTimeoutMs int `mapstructure:"navigation_timeout_ms" json:"navigation_timeout_ms"` // 页面导航超时(毫秒)
	ScrollSettleMs      int `mapstructure:"scroll_settle_ms" json:"scroll_settle_ms"`           // 滚动后等待内容加载的时间(毫秒)
	MaxScrollSteps      int `mapstructure:"max_scroll_steps" json:"max_scroll_steps"`           // 最大滚动次数

	// 重试配置
	RetryMaxAttempts int `mapstructure:"retry_max_attempts" json:"retry_max_attempts"` // 最大尝试次数(含首次)
	RetryBaseDelayMs int `mapstructure:"retry_base_delay_ms" json:"retry_base_delay_ms"`
	RetryMaxDelayMs  int `mapstructure:"retry_max_delay_ms" json:"retry_max_delay_ms"`

	// 请求过滤配置
	BlockedResourceTypes []string `mapstructure:"blocked_resource_types" json:"blocked_resource_types"` // 拦截的资源类型(image/stylesheet/font/media等)
	BlockedURLKeywords   []string `mapstructure:"blocked_url_keywords" json:"blocked_url_keywords"`     // 拦截的URL关键字(广告/统计域名)

	// 链接分类配置
	ProductURLPatterns   []string `mapstructure:"product_url_patterns" json:"product_url_patterns"`     // 商品页路径模式(子串或正则)
	ExcludedPathPatterns []string `mapstructure:"excluded_path_patterns" json:"excluded_path_patterns"` // 排除的路径模式(登录/购物车等)
	TrackingQueryParams  []string `mapstructure:"tracking_query_params" json:"tracking_query_params"`   // 归一化时剥离的跟踪参数

	// 行为配置
	RespectRobots bool    `mapstructure:"respect_robots" json:"respect_robots"`   // 是否检查robots.txt (默认:false)
	RatePerDomain float64 `mapstructure:"rate_per_domain" json:"rate_per_domain"` // 每个域名每秒请求数上限,0表示不限制
	Headless      bool    `mapstructure:"headless" json:"headless"`               // 无头模式 (默认:true)
	Mode          string  `mapstructure:"mode" json:"mode"`                       // 爬取模式 (dynamic|static)
	UserAgent     string  `mapstructure:"user_agent" json:"user_agent"`
}

// Validate 验证配置
func (c *CrawlConfig) Validate() error {
	if c.MaxWorkers < 1 || c.MaxWorkers > 128 {
		return fmt.Errorf("并发数必须在1-128之间")
	}
	if c.MaxDepth < 0 || c.MaxDepth > 20 {
		return fmt.Errorf("爬取深度必须在0-20之间")
	}
	if c.NavigationTimeoutMs < 1000 {
		return fmt.Errorf("导航超时不能小于1000毫秒")
	}
	if c.MaxScrollSteps < 0 {
		return fmt.Errorf("滚动次数不能为负数")
	}
	if c.RetryMaxAttempts < 1 || c.RetryMaxAttempts > 10 {
		return fmt.Errorf("重试次数必须在1-10之间")
	}
	if c.RetryBaseDelayMs < 1 {
		return fmt.Errorf("重试基础延迟必须大于0毫秒")
	}
	if c.RetryMaxDelayMs < c.RetryBaseDelayMs {
		return fmt.Errorf("重试最大延迟不能小于基础延迟")
	}
	if c.Mode != ModeDynamic && c.Mode != ModeStatic {
		return fmt.Errorf("无效的爬取模式: %s (有效值: dynamic, static)", c.Mode)
	}
	return nil
}

// 爬取模式
const (
	ModeDynamic = "dynamic" // 无头浏览器渲染(默认)
	ModeStatic  = "static"  // 纯HTTP抓取,不执行JavaScript
)

// NavigationTimeout 导航超时时长
func (c *CrawlConfig) NavigationTimeout() time.Duration {
	return time.Duration(c.NavigationTimeoutMs) * time.Millisecond
}

// ScrollSettle 滚动后的等待时长
func (c *CrawlConfig) ScrollSettle() time.Duration {
	return time.Duration(c.ScrollSettleMs) * time.Millisecond
}

// RetryBaseDelay 重试基础延迟
func (c *CrawlConfig) RetryBaseDelay() time.Duration {
	return time.Duration(c.RetryBaseDelayMs) * time.Millisecond
}

// RetryMaxDelay 重试最大延迟
func (c *CrawlConfig) RetryMaxDelay() time.Duration {
	return time.Duration(c.RetryMaxDelayMs) * time.Millisecond
}

// MaxElapsed 全局最大运行时长,0表示不限制
func (c *CrawlConfig) MaxElapsed() time.Duration {
	return time.Duration(c.MaxElapsedMinutes) * time.Minute
}
