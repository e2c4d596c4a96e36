package crawlers

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/RecoveryAshes/ProductFind/internal/models"
	"github.com/stretchr/testify/require"
)

// fakeRenderer 按预置站点图返回页面结果,未知URL视为永久失败
type fakeRenderer struct {
	mu    sync.Mutex
	pages map[string][]string
	calls map[string]int
}

func newFakeRenderer(pages map[string][]string) *fakeRenderer {
	return &fakeRenderer{
		pages: pages,
		calls: make(map[string]int),
	}
}

func (fr *fakeRenderer) Render(ctx context.Context, pageURL string) (*models.PageResult, error) {
	fr.mu.Lock()
	defer fr.mu.Unlock()

	fr.calls[pageURL]++
	links, ok := fr.pages[pageURL]
	if !ok {
		return nil, fmt.Errorf("%w: 站点图中不存在: %s", ErrPermanent, pageURL)
	}
	return &models.PageResult{
		URL:      pageURL,
		FinalURL: pageURL,
		Links:    append([]string(nil), links...),
	}, nil
}

func (fr *fakeRenderer) callCount(pageURL string) int {
	fr.mu.Lock()
	defer fr.mu.Unlock()
	return fr.calls[pageURL]
}

// infiniteRenderer 每次渲染都生成两个从未见过的新链接,队列永不耗尽
type infiniteRenderer struct {
	counter int64
}

func (ir *infiniteRenderer) Render(ctx context.Context, pageURL string) (*models.PageResult, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(10 * time.Millisecond):
	}

	n := atomic.AddInt64(&ir.counter, 1)
	return &models.PageResult{
		URL:      pageURL,
		FinalURL: pageURL,
		Links: []string{
			fmt.Sprintf("https://shop.example.com/page/%d", n*2),
			fmt.Sprintf("https://shop.example.com/page/%d", n*2+1),
		},
	}, nil
}

// memorySink 内存版结果落盘,测试用
type memorySink struct {
	mu      sync.Mutex
	seen    map[string]struct{}
	records []models.ProductRecord
}

func newMemorySink() *memorySink {
	return &memorySink{seen: make(map[string]struct{})}
}

func (ms *memorySink) Record(domain string, parentLink string, productLinks []string) int {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	fresh := make([]string, 0, len(productLinks))
	for _, link := range productLinks {
		if _, dup := ms.seen[link]; dup {
			continue
		}
		ms.seen[link] = struct{}{}
		fresh = append(fresh, link)
	}
	if len(fresh) == 0 {
		return 0
	}
	ms.records = append(ms.records, models.ProductRecord{
		Domain:       domain,
		ParentLink:   parentLink,
		Count:        len(fresh),
		ProductLinks: fresh,
	})
	return len(fresh)
}

func (ms *memorySink) products() []string {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	out := make([]string, 0, len(ms.seen))
	for link := range ms.seen {
		out = append(out, link)
	}
	return out
}

func testCrawlConfig() models.CrawlConfig {
	return models.CrawlConfig{
		MaxDepth:      5,
		RatePerDomain: 0,
	}
}

func TestSchedulerCrawlToExhaustion(t *testing.T) {
	renderer := newFakeRenderer(map[string][]string{
		"https://shop.example.com/": {
			"https://shop.example.com/p/1",
			"https://shop.example.com/category/shoes",
			"https://shop.example.com/cart",
			"https://other.com/p/9",
		},
		"https://shop.example.com/category/shoes": {
			"https://shop.example.com/p/1",
			"https://shop.example.com/p/2",
		},
	})
	sink := newMemorySink()
	frontier := NewFrontier(nil)
	filter := NewLinkFilter([]string{"/p/"}, []string{"/cart"}, nil)
	retry := NewRetryController(2, time.Millisecond, 10*time.Millisecond)
	budget := NewBudget(0, 0, 0)

	require.True(t, frontier.Enqueue("https://shop.example.com/", "example.com", 0))

	s := NewScheduler(frontier, filter, retry, budget, renderer, sink, nil, testCrawlConfig(), 4)
	stats := s.Run(context.Background())

	require.Equal(t, models.StopExhausted, stats.StopReason)
	require.Equal(t, 2, stats.PagesVisited)
	require.Equal(t, 0, stats.PagesFailed)
	require.Equal(t, 6, stats.LinksSeen)
	require.Equal(t, 1, stats.LinksEnqueued)
	require.Equal(t, 2, stats.ProductURLs)

	require.ElementsMatch(t,
		[]string{"https://shop.example.com/p/1", "https://shop.example.com/p/2"},
		sink.products())

	// 购物车和跨域链接不应被访问
	require.Zero(t, renderer.callCount("https://shop.example.com/cart"))
	require.Zero(t, renderer.callCount("https://other.com/p/9"))
}

func TestSchedulerPerDomainBudget(t *testing.T) {
	renderer := newFakeRenderer(map[string][]string{
		"https://shop.example.com/": {
			"https://shop.example.com/a",
			"https://shop.example.com/b",
			"https://shop.example.com/c",
		},
		"https://shop.example.com/a": {"https://shop.example.com/d"},
		"https://shop.example.com/b": {},
		"https://shop.example.com/c": {},
		"https://shop.example.com/d": {},
	})
	sink := newMemorySink()
	frontier := NewFrontier(nil)
	filter := NewLinkFilter([]string{"/p/"}, nil, nil)
	retry := NewRetryController(1, time.Millisecond, 10*time.Millisecond)
	budget := NewBudget(2, 0, 0)

	frontier.Enqueue("https://shop.example.com/", "example.com", 0)

	// 单worker保证出队顺序确定
	s := NewScheduler(frontier, filter, retry, budget, renderer, sink, nil, testCrawlConfig(), 1)
	stats := s.Run(context.Background())

	require.Equal(t, 2, stats.PagesVisited)
	require.Equal(t, 2, stats.PagesSkipped)
	// 域名预算用尽后不再扩张队列
	require.Zero(t, renderer.callCount("https://shop.example.com/d"))
}

func TestSchedulerDepthLimit(t *testing.T) {
	renderer := newFakeRenderer(map[string][]string{
		"https://shop.example.com/":  {"https://shop.example.com/a"},
		"https://shop.example.com/a": {"https://shop.example.com/b"},
		"https://shop.example.com/b": {},
	})
	sink := newMemorySink()
	frontier := NewFrontier(nil)
	filter := NewLinkFilter([]string{"/p/"}, nil, nil)
	retry := NewRetryController(1, time.Millisecond, 10*time.Millisecond)
	budget := NewBudget(0, 0, 0)

	frontier.Enqueue("https://shop.example.com/", "example.com", 0)

	config := testCrawlConfig()
	config.MaxDepth = 1

	s := NewScheduler(frontier, filter, retry, budget, renderer, sink, nil, config, 2)
	stats := s.Run(context.Background())

	require.Equal(t, 2, stats.PagesVisited)
	// 深度2的链接不应入队
	require.Zero(t, renderer.callCount("https://shop.example.com/b"))
}

func TestSchedulerDepthZeroSeedsOnly(t *testing.T) {
	renderer := newFakeRenderer(map[string][]string{
		"https://shop.example.com/": {
			"https://shop.example.com/a",
			"https://shop.example.com/b",
		},
		"https://shop.example.com/a": {},
		"https://shop.example.com/b": {},
	})
	sink := newMemorySink()
	frontier := NewFrontier(nil)
	filter := NewLinkFilter([]string{"/p/"}, nil, nil)
	retry := NewRetryController(1, time.Millisecond, 10*time.Millisecond)
	budget := NewBudget(0, 0, 0)

	frontier.Enqueue("https://shop.example.com/", "example.com", 0)

	// 深度0表示只爬种子页面,任何链接都不扩张
	config := testCrawlConfig()
	config.MaxDepth = 0

	s := NewScheduler(frontier, filter, retry, budget, renderer, sink, nil, config, 2)
	stats := s.Run(context.Background())

	require.Equal(t, 1, stats.PagesVisited)
	require.Zero(t, stats.LinksEnqueued)
	require.Zero(t, renderer.callCount("https://shop.example.com/a"))
	require.Zero(t, renderer.callCount("https://shop.example.com/b"))
}

func TestSchedulerRobotsBlockKeepsBudget(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			fmt.Fprint(w, "User-agent: *\nDisallow: /private\n")
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	renderer := newFakeRenderer(map[string][]string{
		srv.URL + "/": {
			srv.URL + "/private/1",
			srv.URL + "/open",
		},
		srv.URL + "/open": {},
	})
	sink := newMemorySink()
	frontier := NewFrontier(nil)
	filter := NewLinkFilter([]string{"/p/"}, nil, nil)
	retry := NewRetryController(1, time.Millisecond, 10*time.Millisecond)
	// 域名配额恰好等于允许访问的页面数,
	// 被robots拦截的条目若占用配额,/open就会被预算挤掉
	budget := NewBudget(2, 0, 0)
	robots := NewRobotsGuard("test-agent", time.Second)

	frontier.Enqueue(srv.URL+"/", "127.0.0.1", 0)

	// 单worker保证出队顺序确定: / -> /private/1 -> /open
	s := NewScheduler(frontier, filter, retry, budget, renderer, sink, robots, testCrawlConfig(), 1)
	stats := s.Run(context.Background())

	require.Equal(t, 2, stats.PagesVisited)
	require.Equal(t, 1, stats.PagesSkipped)
	require.Zero(t, renderer.callCount(srv.URL+"/private/1"))
	require.Equal(t, 1, renderer.callCount(srv.URL+"/open"))
}

func TestSchedulerCountsFailures(t *testing.T) {
	renderer := newFakeRenderer(map[string][]string{
		"https://shop.example.com/": {"https://shop.example.com/missing"},
	})
	sink := newMemorySink()
	frontier := NewFrontier(nil)
	filter := NewLinkFilter([]string{"/p/"}, nil, nil)
	retry := NewRetryController(3, time.Millisecond, 10*time.Millisecond)
	budget := NewBudget(0, 0, 0)

	frontier.Enqueue("https://shop.example.com/", "example.com", 0)

	s := NewScheduler(frontier, filter, retry, budget, renderer, sink, nil, testCrawlConfig(), 2)
	stats := s.Run(context.Background())

	require.Equal(t, 1, stats.PagesVisited)
	require.Equal(t, 1, stats.PagesFailed)
	// 永久失败不应重试
	require.Equal(t, 1, renderer.callCount("https://shop.example.com/missing"))
}

func TestSchedulerStopOnElapsedBudget(t *testing.T) {
	renderer := &infiniteRenderer{}
	sink := newMemorySink()
	frontier := NewFrontier(nil)
	filter := NewLinkFilter([]string{"/p/"}, nil, nil)
	retry := NewRetryController(1, time.Millisecond, 10*time.Millisecond)
	budget := NewBudget(0, 0, 100*time.Millisecond)

	frontier.Enqueue("https://shop.example.com/", "example.com", 0)

	s := NewScheduler(frontier, filter, retry, budget, renderer, sink, nil, testCrawlConfig(), 2)

	done := make(chan models.CrawlStats, 1)
	go func() {
		done <- s.Run(context.Background())
	}()

	select {
	case stats := <-done:
		require.Equal(t, models.StopBudget, stats.StopReason)
	case <-time.After(5 * time.Second):
		t.Fatal("全局时长预算用尽后调度器未停止")
	}
}

func TestSchedulerContextCancel(t *testing.T) {
	renderer := &infiniteRenderer{}
	sink := newMemorySink()
	frontier := NewFrontier(nil)
	filter := NewLinkFilter([]string{"/p/"}, nil, nil)
	retry := NewRetryController(1, time.Millisecond, 10*time.Millisecond)
	budget := NewBudget(0, 0, 0)

	frontier.Enqueue("https://shop.example.com/", "example.com", 0)

	ctx, cancel := context.WithCancel(context.Background())
	s := NewScheduler(frontier, filter, retry, budget, renderer, sink, nil, testCrawlConfig(), 2)

	done := make(chan models.CrawlStats, 1)
	go func() {
		done <- s.Run(ctx)
	}()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case stats := <-done:
		require.Equal(t, models.StopCancelled, stats.StopReason)
	case <-time.After(5 * time.Second):
		t.Fatal("context取消后调度器未停止")
	}
}
