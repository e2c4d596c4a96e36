package crawlers

import (
	"sync"
	"time"
)

// Budget 爬取预算
// 职责: 跟踪每域名访问页数、全局访问页数和运行时长,
// 任一上限用尽时通知调度器停止对应范围的工作。
// 上限值为0表示不限制。
type Budget struct {
	mu sync.Mutex

	// 每域名已访问页数
	perDomain map[string]int

	// 全局已访问页数
	total int

	maxPagesPerDomain int
	maxTotalPages     int
	maxElapsed        time.Duration

	start time.Time
}

// NewBudget 创建爬取预算
func NewBudget(maxPagesPerDomain, maxTotalPages int, maxElapsed time.Duration) *Budget {
	return &Budget{
		perDomain:         make(map[string]int),
		maxPagesPerDomain: maxPagesPerDomain,
		maxTotalPages:     maxTotalPages,
		maxElapsed:        maxElapsed,
		start:             time.Now(),
	}
}

// TryVisit 尝试为域名消耗一次访问配额
// 检查与计数在同一把锁下完成,并发worker不会超额访问。
// 返回false表示该域名或全局预算已用尽,本次访问不被允许。
func (b *Budget) TryVisit(domain string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.maxTotalPages > 0 && b.total >= b.maxTotalPages {
		return false
	}
	if b.maxPagesPerDomain > 0 && b.perDomain[domain] >= b.maxPagesPerDomain {
		return false
	}

	b.perDomain[domain]++
	b.total++
	return true
}

// DomainExhausted 检查域名预算是否已用尽(只读,不消耗配额)
func (b *Budget) DomainExhausted(domain string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.maxPagesPerDomain > 0 && b.perDomain[domain] >= b.maxPagesPerDomain
}

// GlobalExhausted 检查全局预算(总页数或运行时长)是否已用尽
func (b *Budget) GlobalExhausted() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.maxTotalPages > 0 && b.total >= b.maxTotalPages {
		return true
	}
	if b.maxElapsed > 0 && time.Since(b.start) >= b.maxElapsed {
		return true
	}
	return false
}

// TotalVisited 返回全局已访问页数
func (b *Budget) TotalVisited() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.total
}

// DomainVisited 返回域名已访问页数
func (b *Budget) DomainVisited(domain string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.perDomain[domain]
}

// Elapsed 返回已运行时长
func (b *Budget) Elapsed() time.Duration {
	return time.Since(b.start)
}
