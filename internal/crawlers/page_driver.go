package crawlers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/RecoveryAshes/ProductFind/internal/models"
	"github.com/RecoveryAshes/ProductFind/internal/utils"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// PageRenderer 页面渲染器接口
// 渲染一个URL并返回最终URL、标题和页面内所有绝对链接。
// 实现: DynamicDriver(无头浏览器)和StaticDriver(纯HTTP)。
type PageRenderer interface {
	Render(ctx context.Context, pageURL string) (*models.PageResult, error)
}

// DynamicDriver 动态页面驱动(使用Rod无头浏览器)
// 职责: 从标签页池获取标签页,拦截并丢弃重资源请求,导航后执行
// 无限滚动触发懒加载,最后收集页面内全部<a href>链接。
type DynamicDriver struct {
	pool   *PagePool
	config models.CrawlConfig

	// 预先解析好的资源类型拦截表
	blockedTypes map[proto.NetworkResourceType]struct{}

	// 小写的URL关键词拦截列表(广告/统计域名)
	blockedKeywords []string
}

// resourceTypeNames 配置字符串到CDP资源类型的映射
var resourceTypeNames = map[string]proto.NetworkResourceType{
	"document":   proto.NetworkResourceTypeDocument,
	"stylesheet": proto.NetworkResourceTypeStylesheet,
	"image":      proto.NetworkResourceTypeImage,
	"media":      proto.NetworkResourceTypeMedia,
	"font":       proto.NetworkResourceTypeFont,
	"script":     proto.NetworkResourceTypeScript,
	"xhr":        proto.NetworkResourceTypeXHR,
	"fetch":      proto.NetworkResourceTypeFetch,
	"websocket":  proto.NetworkResourceTypeWebSocket,
	"other":      proto.NetworkResourceTypeOther,
}

// NewDynamicDriver 创建动态页面驱动
func NewDynamicDriver(pool *PagePool, config models.CrawlConfig) *DynamicDriver {
	dd := &DynamicDriver{
		pool:         pool,
		config:       config,
		blockedTypes: make(map[proto.NetworkResourceType]struct{}),
	}

	for _, name := range config.BlockedResourceTypes {
		if rt, ok := resourceTypeNames[strings.ToLower(strings.TrimSpace(name))]; ok {
			dd.blockedTypes[rt] = struct{}{}
		} else {
			utils.Warnf("未知的资源类型拦截配置: %s", name)
		}
	}

	for _, kw := range config.BlockedURLKeywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" {
			dd.blockedKeywords = append(dd.blockedKeywords, kw)
		}
	}

	return dd
}

// Render 渲染页面并提取链接
// 浏览器层面的panic统一转换为ErrPageCrashed,由重试控制器决定是否重试。
func (dd *DynamicDriver) Render(ctx context.Context, pageURL string) (result *models.PageResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			utils.Errorf("页面渲染panic [%s]: %v", pageURL, r)
			result = nil
			err = fmt.Errorf("%w: %v", ErrPageCrashed, r)
		}
	}()

	page, acquireErr := dd.pool.AcquirePage(ctx)
	if acquireErr != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", ErrPageCrashed, acquireErr)
	}
	defer dd.pool.ReleasePage(page)

	page = page.Context(ctx)

	router, routeErr := dd.setupRequestBlocking(page)
	if routeErr != nil {
		utils.Warnf("设置资源拦截失败 [%s]: %v", pageURL, routeErr)
	} else if router != nil {
		// 标签页会被归还复用,渲染结束时必须摘除本次的拦截路由
		defer router.Stop()
	}

	if dd.config.UserAgent != "" {
		if uaErr := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
			UserAgent: dd.config.UserAgent,
		}); uaErr != nil {
			utils.Warnf("设置UserAgent失败: %v", uaErr)
		}
	}

	// 导航超时只约束导航和首屏加载,
	// 滚动阶段由步数上限和settle时间约束,提取阶段由worker的ctx约束
	navPage := page.Timeout(dd.config.NavigationTimeout())
	if navErr := navPage.Navigate(pageURL); navErr != nil {
		return nil, classifyNavigationError(pageURL, navErr)
	}

	if loadErr := navPage.WaitLoad(); loadErr != nil {
		return nil, classifyNavigationError(pageURL, loadErr)
	}
	navPage.CancelTimeout()

	// 无限滚动,触发懒加载的商品列表
	if scrollErr := dd.scrollToBottom(ctx, page); scrollErr != nil {
		// 滚动失败不致命,已加载的部分仍然可以提取链接
		utils.Debugf("页面滚动中断 [%s]: %v", pageURL, scrollErr)
	}

	links, extractErr := dd.extractLinks(page)
	if extractErr != nil {
		return nil, fmt.Errorf("%w: 提取链接失败: %v", ErrNavigation, extractErr)
	}

	finalURL := pageURL
	title := ""
	if info, infoErr := page.Info(); infoErr == nil {
		if info.URL != "" {
			finalURL = info.URL
		}
		title = info.Title
	}

	utils.Debugf("页面渲染完成 [%s]: %d个链接", pageURL, len(links))

	return &models.PageResult{
		URL:      pageURL,
		FinalURL: finalURL,
		Title:    title,
		Links:    links,
	}, nil
}

// setupRequestBlocking 拦截并丢弃重资源和广告统计请求
// 图片/样式/媒体/字体对链接发现无贡献,丢弃后显著降低带宽和渲染耗时。
func (dd *DynamicDriver) setupRequestBlocking(page *rod.Page) (*rod.HijackRouter, error) {
	if len(dd.blockedTypes) == 0 && len(dd.blockedKeywords) == 0 {
		return nil, nil
	}

	router := page.HijackRequests()

	err := router.Add("*", "", func(hctx *rod.Hijack) {
		if _, blocked := dd.blockedTypes[hctx.Request.Type()]; blocked {
			hctx.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}

		reqURL := strings.ToLower(hctx.Request.URL().String())
		for _, kw := range dd.blockedKeywords {
			if strings.Contains(reqURL, kw) {
				hctx.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
				return
			}
		}

		hctx.ContinueRequest(&proto.FetchContinueRequest{})
	})
	if err != nil {
		return nil, err
	}

	go router.Run()
	return router, nil
}

// scrollToBottom 模拟无限滚动直到页面高度稳定或达到步数上限
func (dd *DynamicDriver) scrollToBottom(ctx context.Context, page *rod.Page) error {
	steps, err := scrollUntilStable(ctx, dd.config.MaxScrollSteps, dd.config.ScrollSettle(),
		func() (int, error) { return dd.pageHeight(page) },
		func() error {
			_, err := page.Evaluate(&rod.EvalOptions{
				JS: `() => { window.scrollBy(0, document.body.scrollHeight); return true; }`,
			})
			return err
		})
	if err != nil {
		return err
	}

	utils.Debugf("滚动结束,共%d步 (上限%d)", steps, dd.config.MaxScrollSteps)
	return nil
}

// scrollUntilStable 无限滚动的终止策略
// 每步: 测量高度 -> 与上一步相同则停止 -> 否则滚动一屏并等待settle时间
// 让懒加载内容渲染。返回实际执行的滚动步数。
func scrollUntilStable(ctx context.Context, maxSteps int, settle time.Duration, measure func() (int, error), scroll func() error) (int, error) {
	lastHeight := -1

	for step := 0; step < maxSteps; step++ {
		height, err := measure()
		if err != nil {
			return step, err
		}
		if height == lastHeight {
			return step, nil
		}
		lastHeight = height

		if err := scroll(); err != nil {
			return step, err
		}

		select {
		case <-ctx.Done():
			return step + 1, ctx.Err()
		case <-time.After(settle):
		}
	}

	return maxSteps, nil
}

// pageHeight 读取当前文档高度
func (dd *DynamicDriver) pageHeight(page *rod.Page) (int, error) {
	obj, err := page.Evaluate(&rod.EvalOptions{
		JS: `() => document.body.scrollHeight`,
	})
	if err != nil {
		return 0, err
	}
	return obj.Value.Int(), nil
}

// extractLinks 收集页面内全部<a href>绝对链接(浏览器端已去重)
func (dd *DynamicDriver) extractLinks(page *rod.Page) ([]string, error) {
	obj, err := page.Evaluate(&rod.EvalOptions{
		JS: `() => {
			const seen = new Set();
			const links = [];
			document.querySelectorAll('a[href]').forEach(a => {
				const href = a.href;
				if (href && !seen.has(href)) {
					seen.add(href);
					links.push(href);
				}
			});
			return links;
		}`,
	})
	if err != nil {
		return nil, err
	}

	raw := obj.Value.Arr()
	links := make([]string, 0, len(raw))
	for _, v := range raw {
		links = append(links, v.Str())
	}
	return links, nil
}

// classifyNavigationError 将rod导航错误归类为瞬时或永久失败
// 域名无法解析和协议错误视为永久失败,超时和连接类错误视为瞬时失败。
func classifyNavigationError(pageURL string, err error) error {
	msg := err.Error()

	if strings.Contains(msg, "ERR_NAME_NOT_RESOLVED") ||
		strings.Contains(msg, "ERR_INVALID_URL") ||
		strings.Contains(msg, "ERR_UNKNOWN_URL_SCHEME") {
		return fmt.Errorf("%w: %s: %v", ErrPermanent, pageURL, err)
	}

	return fmt.Errorf("%w: %s: %v", ErrNavigation, pageURL, err)
}
