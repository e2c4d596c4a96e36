package core

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/RecoveryAshes/ProductFind/internal/crawlers"
	"github.com/RecoveryAshes/ProductFind/internal/models"
	"github.com/RecoveryAshes/ProductFind/internal/utils"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/schollz/progressbar/v3"
)

// Crawler 主爬取协调器
// 职责: 组装Frontier/LinkFilter/调度器/渲染驱动/结果落盘,
// 管理浏览器与资源监控的生命周期,运行结束后生成报告。
type Crawler struct {
	config    models.CrawlConfig
	seeds     []string
	outputDir string
	runID     string

	browser *rod.Browser

	stats models.CrawlStats
}

// NewCrawler 创建主爬取协调器
func NewCrawler(seeds []string, config models.CrawlConfig, outputDir string) (*Crawler, error) {
	if len(seeds) == 0 {
		return nil, fmt.Errorf("种子URL列表为空,无法开始爬取")
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("配置无效: %w", err)
	}

	return &Crawler{
		config:    config,
		seeds:     seeds,
		outputDir: outputDir,
		runID:     models.GenerateRunID(),
	}, nil
}

// Crawl 执行爬取任务
// 执行流程:
//  1. 初始化资源监控,确定worker并发数
//  2. 种子URL归一化后入队
//  3. 按模式创建渲染驱动(dynamic需启动浏览器)
//  4. 运行调度器直到队列耗尽/预算用尽/被取消
//  5. 生成运行报告
func (c *Crawler) Crawl(ctx context.Context) error {
	startTime := time.Now()

	utils.Infof("🚀 开始商品链接发现任务 (run_id: %s)", c.runID)
	utils.Infof("种子数量: %d", len(c.seeds))
	utils.Infof("爬取模式: %s", c.config.Mode)
	utils.Infof("最大深度: %d", c.config.MaxDepth)
	utils.Infof("输出目录: %s", c.outputDir)

	// 资源监控: 推导初始worker数,运行中限制标签页创建
	monitor := crawlers.NewResourceMonitor(crawlers.ResourceMonitorConfig{
		SafetyReserveMemory: 1024 * 1024 * 1024, // 1GB
		SafetyThreshold:     500 * 1024 * 1024,  // 500MB
		CPULoadThreshold:    80,                 // 80%
		MaxWorkersLimit:     c.config.MaxWorkers,
		WorkerMemoryUsage:   100 * 1024 * 1024, // 100MB per worker
	})
	monitor.StartMonitoring(1 * time.Second)
	defer monitor.StopMonitoring()

	workers := monitor.InitialWorkers(c.config.AutoScale, c.config.MaxWorkers)

	// 边界队列与种子入队
	frontier := crawlers.NewFrontier(c.config.TrackingQueryParams)
	seedDomains := make(map[string]struct{})
	for _, seed := range c.seeds {
		parsed, err := url.Parse(seed)
		if err != nil {
			utils.Warnf("跳过无法解析的种子: %s", seed)
			continue
		}
		domain := crawlers.RegistrableDomain(parsed.Host)
		if frontier.Enqueue(seed, domain, 0) {
			seedDomains[domain] = struct{}{}
		} else {
			utils.Warnf("种子入队被拒绝(重复或格式无效): %s", seed)
		}
	}
	if len(seedDomains) == 0 {
		return fmt.Errorf("没有任何种子成功入队")
	}
	utils.Infof("种子域名数: %d", len(seedDomains))

	// 结果落盘
	sink, err := utils.NewFileSink(c.outputDir)
	if err != nil {
		return fmt.Errorf("初始化结果落盘失败: %w", err)
	}
	defer sink.Close()

	// 渲染驱动
	renderer, cleanup, err := c.buildRenderer(ctx, monitor, frontier)
	if err != nil {
		return err
	}
	defer cleanup()

	filter := crawlers.NewLinkFilter(
		c.config.ProductURLPatterns,
		c.config.ExcludedPathPatterns,
		c.config.TrackingQueryParams,
	)
	retry := crawlers.NewRetryController(
		c.config.RetryMaxAttempts,
		c.config.RetryBaseDelay(),
		c.config.RetryMaxDelay(),
	)
	budget := crawlers.NewBudget(
		c.config.MaxPagesPerDomain,
		c.config.MaxTotalPages,
		c.config.MaxElapsed(),
	)

	var robots *crawlers.RobotsGuard
	if c.config.RespectRobots {
		robots = crawlers.NewRobotsGuard(c.config.UserAgent, c.config.NavigationTimeout())
		utils.Infof("已启用robots.txt检查")
	}

	scheduler := crawlers.NewScheduler(frontier, filter, retry, budget, renderer, sink, robots, c.config, workers)

	// 进度显示goroutine
	progressDone := make(chan struct{})
	go c.reportProgress(scheduler, frontier, progressDone)

	c.stats = scheduler.Run(ctx)
	close(progressDone)

	c.stats.SeedDomains = len(seedDomains)
	c.stats.Duration = time.Since(startTime).Seconds()
	c.stats.ProductURLs = sink.TotalProducts()

	// 生成运行报告
	reporter := utils.NewReporter(c.outputDir)
	if err := reporter.GenerateReport(c.runID, c.seeds, c.stats, c.config, sink.ResultsPath(), sink.RecordsPath()); err != nil {
		utils.Warnf("生成报告失败: %v", err)
	}

	utils.Infof("✅ 商品链接发现完成 (%s)", c.stats.StopReason)
	utils.Infof("访问页面数: %d", c.stats.PagesVisited)
	utils.Infof("失败页面数: %d", c.stats.PagesFailed)
	utils.Infof("发现商品URL数: %d", c.stats.ProductURLs)
	utils.Infof("总耗时: %.2f秒", c.stats.Duration)

	return nil
}

// buildRenderer 按配置模式创建渲染驱动,返回驱动和资源清理函数
func (c *Crawler) buildRenderer(ctx context.Context, monitor *crawlers.ResourceMonitor, frontier *crawlers.Frontier) (crawlers.PageRenderer, func(), error) {
	switch c.config.Mode {
	case models.ModeDynamic:
		if err := c.launchBrowser(); err != nil {
			return nil, nil, fmt.Errorf("启动浏览器失败: %w", err)
		}
		// 证书跳过适用于内网/开发环境的自签名证书
		utils.Warnf("浏览器已配置为跳过HTTPS证书验证")

		pool := crawlers.NewPagePool(c.browser, monitor, frontier, ctx)
		driver := crawlers.NewDynamicDriver(pool, c.config)

		cleanup := func() {
			pool.Close()
			c.closeBrowser()
		}
		return driver, cleanup, nil

	case models.ModeStatic:
		utils.Infof("🔍 静态抓取模式: 不执行JavaScript,懒加载内容不可见")
		return crawlers.NewStaticDriver(c.config), func() {}, nil

	default:
		return nil, nil, fmt.Errorf("无效的爬取模式: %s", c.config.Mode)
	}
}

// launchBrowser 启动浏览器
func (c *Crawler) launchBrowser() error {
	l := launcher.New().Headless(c.config.Headless)

	// 允许访问自签名、过期或主机名不匹配的HTTPS站点
	l = l.Set("ignore-certificate-errors")

	controlURL, err := l.Launch()
	if err != nil {
		return fmt.Errorf("启动浏览器进程失败: %w", err)
	}

	c.browser = rod.New().ControlURL(controlURL)
	if err := c.browser.Connect(); err != nil {
		return fmt.Errorf("连接浏览器失败: %w", err)
	}

	utils.Debugf("浏览器已启动: %s", controlURL)
	return nil
}

// closeBrowser 关闭浏览器
func (c *Crawler) closeBrowser() {
	if c.browser != nil {
		c.browser.MustClose()
		utils.Debugf("浏览器已关闭")
	}
}

// reportProgress 周期性输出运行进度
// 设置了全局页数上限时用进度条展示,否则输出统计日志行。
func (c *Crawler) reportProgress(scheduler *crawlers.Scheduler, frontier *crawlers.Frontier, done <-chan struct{}) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	var bar *progressbar.ProgressBar
	if c.config.MaxTotalPages > 0 {
		bar = utils.NewProgressBar(c.config.MaxTotalPages, "已访问页面")
	}

	for {
		select {
		case <-done:
			if bar != nil {
				bar.Finish()
			}
			return
		case <-ticker.C:
			stats := scheduler.Stats()
			if bar != nil {
				bar.Set(stats.PagesVisited)
				continue
			}
			utils.Infof("进度: 已访问 %d 页, 失败 %d 页, 队列剩余 %d, 商品URL %d, 活跃worker %d",
				stats.PagesVisited, stats.PagesFailed, frontier.PendingCount(),
				stats.ProductURLs, scheduler.ActiveWorkers())
		}
	}
}

// GetStats 获取统计信息
func (c *Crawler) GetStats() models.CrawlStats {
	return c.stats
}

// RunID 本次运行的唯一标识
func (c *Crawler) RunID() string {
	return c.runID
}
