package crawlers

import (
	"crypto/tls"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/RecoveryAshes/ProductFind/internal/utils"
	"github.com/temoto/robotstxt"
)

// RobotsGuard robots.txt访问控制
// 职责: 按主机缓存robots.txt规则,在访问前检查路径是否被禁止。
// robots.txt获取失败(网络错误、404等)时放行,与大多数商业爬虫的
// 宽松策略一致,避免一个超时把整个站点拒之门外。
type RobotsGuard struct {
	mu    sync.Mutex
	cache map[string]*robotstxt.RobotsData

	userAgent string
	client    *http.Client
}

// NewRobotsGuard 创建robots.txt访问控制器
func NewRobotsGuard(userAgent string, timeout time.Duration) *RobotsGuard {
	return &RobotsGuard{
		cache:     make(map[string]*robotstxt.RobotsData),
		userAgent: userAgent,
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{
					InsecureSkipVerify: true,
				},
			},
		},
	}
}

// Allowed 检查URL是否允许访问
func (rg *RobotsGuard) Allowed(pageURL string) bool {
	parsed, err := url.Parse(pageURL)
	if err != nil {
		return true
	}

	data := rg.robotsFor(parsed)
	if data == nil {
		return true
	}

	group := data.FindGroup(rg.userAgent)
	if group == nil {
		return true
	}
	return group.Test(parsed.Path)
}

// robotsFor 获取主机的robots.txt规则(带缓存),失败时缓存nil表示放行
func (rg *RobotsGuard) robotsFor(parsed *url.URL) *robotstxt.RobotsData {
	host := parsed.Scheme + "://" + parsed.Host

	rg.mu.Lock()
	if data, ok := rg.cache[host]; ok {
		rg.mu.Unlock()
		return data
	}
	rg.mu.Unlock()

	data := rg.fetch(host)

	rg.mu.Lock()
	rg.cache[host] = data
	rg.mu.Unlock()

	return data
}

// fetch 下载并解析robots.txt
func (rg *RobotsGuard) fetch(host string) *robotstxt.RobotsData {
	robotsURL := fmt.Sprintf("%s/robots.txt", host)

	resp, err := rg.client.Get(robotsURL)
	if err != nil {
		utils.Debugf("获取robots.txt失败 [%s]: %v, 默认放行", robotsURL, err)
		return nil
	}
	defer resp.Body.Close()

	data, err := robotstxt.FromResponse(resp)
	if err != nil {
		utils.Debugf("解析robots.txt失败 [%s]: %v, 默认放行", robotsURL, err)
		return nil
	}

	utils.Debugf("已加载robots.txt: %s", robotsURL)
	return data
}
