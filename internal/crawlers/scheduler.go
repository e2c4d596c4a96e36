package crawlers

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/RecoveryAshes/ProductFind/internal/models"
	"github.com/RecoveryAshes/ProductFind/internal/utils"
	"golang.org/x/time/rate"
)

// ResultSink 商品链接落盘接口
// Record返回本次新增(去重后)的商品链接数。
type ResultSink interface {
	Record(domain string, parentLink string, productLinks []string) int
}

// Scheduler 爬取调度器
// 职责: 维护固定大小的worker池,从边界队列取URL,经预算/robots/限速
// 检查后交给渲染器,把发现的链接分类后回灌队列或写入结果。
type Scheduler struct {
	frontier *Frontier
	filter   *LinkFilter
	retry    *RetryController
	budget   *Budget
	renderer PageRenderer
	sink     ResultSink

	// 可选的robots.txt检查,nil表示不启用
	robots *RobotsGuard

	config  models.CrawlConfig
	workers int

	// 每域名限速器,ratePerDomain<=0时不限速
	limitersMu sync.Mutex
	limiters   map[string]*rate.Limiter

	// 统计
	statsMu sync.Mutex
	stats   models.CrawlStats

	// 活跃worker计数,用于空闲检测日志
	activeWorkers int32
}

// NewScheduler 创建调度器
func NewScheduler(
	frontier *Frontier,
	filter *LinkFilter,
	retry *RetryController,
	budget *Budget,
	renderer PageRenderer,
	sink ResultSink,
	robots *RobotsGuard,
	config models.CrawlConfig,
	workers int,
) *Scheduler {
	if workers < 1 {
		workers = 1
	}
	return &Scheduler{
		frontier: frontier,
		filter:   filter,
		retry:    retry,
		budget:   budget,
		renderer: renderer,
		sink:     sink,
		robots:   robots,
		config:   config,
		workers:  workers,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Run 运行爬取直到队列耗尽、全局预算用尽或context取消
// 返回本轮运行的统计信息。
func (s *Scheduler) Run(ctx context.Context) models.CrawlStats {
	startTime := time.Now()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// 全局预算看门狗: 总页数或运行时长用尽时关闭队列并取消所有worker
	watchdogDone := make(chan struct{})
	go func() {
		defer close(watchdogDone)
		ticker := time.NewTicker(500 * time.Millisecond)
		defer ticker.Stop()

		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				if s.budget.GlobalExhausted() {
					utils.Warnf("⏱️  全局预算用尽(已访问%d页, 已运行%v),停止爬取", s.budget.TotalVisited(), s.budget.Elapsed().Round(time.Second))
					s.setStopReason(models.StopBudget)
					s.frontier.Close()
					cancel()
					return
				}
			}
		}
	}()

	utils.Infof("🚀 调度器启动: worker数=%d", s.workers)

	var wg sync.WaitGroup
	for i := 0; i < s.workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(runCtx, workerID)
		}(i)
	}
	wg.Wait()

	cancel()
	<-watchdogDone

	s.statsMu.Lock()
	defer s.statsMu.Unlock()

	s.stats.Duration = time.Since(startTime).Seconds()
	if s.stats.StopReason == "" {
		if ctx.Err() != nil {
			s.stats.StopReason = models.StopCancelled
		} else {
			s.stats.StopReason = models.StopExhausted
		}
	}
	return s.stats
}

// worker 循环从队列取URL并处理,队列耗尽或context取消时退出
func (s *Scheduler) worker(ctx context.Context, workerID int) {
	for {
		entry, ok := s.frontier.Dequeue(ctx)
		if !ok {
			utils.Debugf("Worker %d 退出: 队列耗尽或已取消", workerID)
			return
		}

		atomic.AddInt32(&s.activeWorkers, 1)
		s.process(ctx, workerID, entry)
		atomic.AddInt32(&s.activeWorkers, -1)
	}
}

// process 处理一个出队条目
// TaskDone必须在发现的链接全部入队之后调用,否则其他worker可能
// 在回灌前观察到"队列空且无in-flight"而提前退出。
func (s *Scheduler) process(ctx context.Context, workerID int, entry models.FrontierEntry) {
	defer s.frontier.TaskDone()

	// 只读预检: 预算已用尽的条目快速丢弃,不经过robots获取和限速等待
	if s.budget.DomainExhausted(entry.Domain) || s.budget.GlobalExhausted() {
		s.addSkipped()
		utils.Debugf("预算用尽,跳过 [%s] (域名: %s)", entry.URL, entry.Domain)
		return
	}

	if s.robots != nil && !s.robots.Allowed(entry.URL) {
		s.addSkipped()
		utils.Debugf("robots.txt禁止,跳过 [%s]", entry.URL)
		return
	}

	// 对同一域名的请求限速
	if limiter := s.limiterFor(entry.Domain); limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			return
		}
	}

	// 配额在所有门槛之后消耗,被robots拒绝或等待中取消的条目不占预算
	if !s.budget.TryVisit(entry.Domain) {
		s.addSkipped()
		utils.Debugf("预算用尽,跳过 [%s] (域名: %s)", entry.URL, entry.Domain)
		return
	}

	utils.Debugf("Worker %d 访问页面: %s (深度: %d)", workerID, entry.URL, entry.Depth)

	result := s.retry.Do(ctx, entry.URL, func(renderCtx context.Context) (*models.PageResult, error) {
		return s.renderer.Render(renderCtx, entry.URL)
	})

	if result.Failed() {
		s.addFailed()
		if result.Failure.Kind != models.FailureCancelled {
			utils.Warnf("❌ 页面处理失败 [%s] (%s, 尝试%d次): %s",
				entry.URL, result.Failure.Kind, result.Attempts, result.Failure.Message)
		}
		return
	}

	s.addVisited()
	s.handleLinks(entry, result)
}

// handleLinks 分类页面链接: 商品链接写入结果,可导航链接回灌队列
func (s *Scheduler) handleLinks(entry models.FrontierEntry, result *models.PageResult) {
	var products []string
	enqueued := 0

	for _, link := range result.Links {
		s.addLinkSeen()

		switch s.filter.Classify(link, entry.Domain) {
		case ClassProduct:
			normalized, err := s.filter.Normalize(link)
			if err != nil {
				continue
			}
			products = append(products, normalized)

		case ClassNavigable:
			// 深度限制: 超过最大深度的链接不再入队
			// max_depth=0表示只爬种子页面,不做任何扩张
			if entry.Depth+1 > s.config.MaxDepth {
				continue
			}
			// 域名预算已用尽时不再扩张该域名的队列
			if s.budget.DomainExhausted(entry.Domain) {
				continue
			}
			if s.frontier.Enqueue(link, entry.Domain, entry.Depth+1) {
				enqueued++
			}
		}
	}

	if enqueued > 0 {
		s.addEnqueued(enqueued)
	}

	if len(products) > 0 {
		newCount := s.sink.Record(entry.Domain, entry.URL, products)
		if newCount > 0 {
			s.addProducts(newCount)
			utils.Infof("📥 发现 %d 个新商品链接 (累计来源: %s)", newCount, entry.URL)
		}
	}
}

// limiterFor 获取域名的限速器,首次访问时创建
func (s *Scheduler) limiterFor(domain string) *rate.Limiter {
	if s.config.RatePerDomain <= 0 {
		return nil
	}

	s.limitersMu.Lock()
	defer s.limitersMu.Unlock()

	limiter, ok := s.limiters[domain]
	if !ok {
		limiter = rate.NewLimiter(rate.Limit(s.config.RatePerDomain), 1)
		s.limiters[domain] = limiter
	}
	return limiter
}

// ActiveWorkers 当前正在处理页面的worker数
func (s *Scheduler) ActiveWorkers() int {
	return int(atomic.LoadInt32(&s.activeWorkers))
}

// Stats 返回当前统计快照
func (s *Scheduler) Stats() models.CrawlStats {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	return s.stats
}

func (s *Scheduler) addVisited() {
	s.statsMu.Lock()
	s.stats.PagesVisited++
	s.statsMu.Unlock()
}

func (s *Scheduler) addFailed() {
	s.statsMu.Lock()
	s.stats.PagesFailed++
	s.statsMu.Unlock()
}

func (s *Scheduler) addSkipped() {
	s.statsMu.Lock()
	s.stats.PagesSkipped++
	s.statsMu.Unlock()
}

func (s *Scheduler) addLinkSeen() {
	s.statsMu.Lock()
	s.stats.LinksSeen++
	s.statsMu.Unlock()
}

func (s *Scheduler) addEnqueued(n int) {
	s.statsMu.Lock()
	s.stats.LinksEnqueued += n
	s.statsMu.Unlock()
}

func (s *Scheduler) addProducts(n int) {
	s.statsMu.Lock()
	s.stats.ProductURLs += n
	s.statsMu.Unlock()
}

func (s *Scheduler) setStopReason(reason string) {
	s.statsMu.Lock()
	if s.stats.StopReason == "" {
		s.stats.StopReason = reason
	}
	s.statsMu.Unlock()
}
