package crawlers

import (
	"context"
	"sync"
	"time"

	"github.com/RecoveryAshes/ProductFind/internal/models"
	"github.com/RecoveryAshes/ProductFind/internal/utils"
)

// Frontier URL边界队列
// 职责: 管理待爬取URL,按域名分队列FIFO,跨域名轮询出队,
// 归一化URL的新颖性检查与入队在同一把锁下完成,保证同一URL至多入队一次。
type Frontier struct {
	mu sync.Mutex

	// 域名轮询顺序
	order []string

	// 每个域名的FIFO待爬队列
	queues map[string][]models.FrontierEntry

	// 已见归一化URL集合(入队或已出队的都算)
	visited map[string]struct{}

	// 轮询游标
	next int

	// 已出队但尚未TaskDone的条目数
	// 非零时即使所有队列为空也不算耗尽,避免worker在其他worker的发现入队前提前退出
	inFlight int

	closed bool

	// 入队/完成时的唤醒信号
	notify chan struct{}

	// 归一化时剥离的跟踪参数
	trackingParams map[string]struct{}
}

// NewFrontier 创建Frontier实例
func NewFrontier(trackingParams []string) *Frontier {
	params := make(map[string]struct{}, len(trackingParams))
	for _, p := range trackingParams {
		params[normalizeParamKey(p)] = struct{}{}
	}

	return &Frontier{
		queues:         make(map[string][]models.FrontierEntry),
		visited:        make(map[string]struct{}),
		notify:         make(chan struct{}, 1),
		trackingParams: params,
	}
}

// Enqueue 添加URL到待爬队列
// 归一化后检查新颖性,原子地插入visited集合与对应域名队列。
// 返回true表示URL首次出现并已入队;归一化失败或已见过返回false。
func (f *Frontier) Enqueue(rawURL string, originDomain string, depth int) bool {
	normalized, err := NormalizeURL(rawURL, f.trackingParams)
	if err != nil {
		utils.Debugf("入队被拒绝 [%s]: %v", rawURL, err)
		return false
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return false
	}

	if _, seen := f.visited[normalized]; seen {
		return false
	}
	f.visited[normalized] = struct{}{}

	if _, exists := f.queues[originDomain]; !exists {
		f.order = append(f.order, originDomain)
	}
	f.queues[originDomain] = append(f.queues[originDomain], models.FrontierEntry{
		URL:    normalized,
		Domain: originDomain,
		Depth:  depth,
	})

	f.wake()
	return true
}

// Dequeue 取出下一个待爬条目
// 多个域名有待爬条目时跨域名轮询,避免大站点饿死其他站点。
// 队列暂时为空但仍有in-flight条目时阻塞等待;耗尽或context取消时返回false。
func (f *Frontier) Dequeue(ctx context.Context) (models.FrontierEntry, bool) {
	for {
		f.mu.Lock()
		if entry, ok := f.popLocked(); ok {
			f.inFlight++
			f.mu.Unlock()
			return entry, true
		}
		if f.closed || f.inFlight == 0 {
			f.mu.Unlock()
			return models.FrontierEntry{}, false
		}
		f.mu.Unlock()

		// 等待新URL入队或in-flight条目完成
		// 超时分支兜底,防止唤醒信号在竞争下丢失
		select {
		case <-ctx.Done():
			return models.FrontierEntry{}, false
		case <-f.notify:
		case <-time.After(50 * time.Millisecond):
		}
	}
}

// popLocked 轮询各域名队列取出一个条目,调用者必须持有f.mu
func (f *Frontier) popLocked() (models.FrontierEntry, bool) {
	for i := 0; i < len(f.order); i++ {
		idx := (f.next + i) % len(f.order)
		domain := f.order[idx]
		queue := f.queues[domain]
		if len(queue) == 0 {
			continue
		}

		entry := queue[0]
		f.queues[domain] = queue[1:]
		f.next = (idx + 1) % len(f.order)
		return entry, true
	}
	return models.FrontierEntry{}, false
}

// TaskDone 声明一个已出队条目处理完毕(其发现的链接已全部入队)
func (f *Frontier) TaskDone() {
	f.mu.Lock()
	if f.inFlight > 0 {
		f.inFlight--
	}
	f.mu.Unlock()

	// 唤醒阻塞中的worker,让它们重新检查耗尽条件
	f.wake()
}

// IsExhausted 判断是否耗尽: 所有域名队列为空且没有in-flight条目
func (f *Frontier) IsExhausted() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.inFlight > 0 {
		return false
	}
	for _, queue := range f.queues {
		if len(queue) > 0 {
			return false
		}
	}
	return true
}

// PendingCount 返回当前待爬条目总数
func (f *Frontier) PendingCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	total := 0
	for _, queue := range f.queues {
		total += len(queue)
	}
	return total
}

// Seen 检查归一化URL是否已见过
func (f *Frontier) Seen(rawURL string) bool {
	normalized, err := NormalizeURL(rawURL, f.trackingParams)
	if err != nil {
		return false
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.visited[normalized]
	return ok
}

// Close 关闭队列,阻塞中的Dequeue全部返回false
func (f *Frontier) Close() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	f.wake()
}

// wake 非阻塞唤醒
func (f *Frontier) wake() {
	select {
	case f.notify <- struct{}{}:
	default:
	}
}
