package crawlers

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/RecoveryAshes/ProductFind/internal/models"
	"github.com/RecoveryAshes/ProductFind/internal/utils"
	"github.com/andybalholm/brotli"
	"github.com/gocolly/colly/v2"
	"golang.org/x/net/html"
)

// StaticDriver 静态页面驱动(使用Colly)
// 职责: 纯HTTP抓取HTML并解析链接,不执行JavaScript。
// 适用于服务端渲染的站点,无法触发懒加载内容,
// JS渲染的商品列表需要切换到dynamic模式。
type StaticDriver struct {
	base   *colly.Collector
	config models.CrawlConfig
}

// NewStaticDriver 创建静态页面驱动
func NewStaticDriver(config models.CrawlConfig) *StaticDriver {
	// 跳过证书验证,允许访问自签名、过期或主机名不匹配的HTTPS站点
	httpClient := &http.Client{
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: true,
			},
		},
		Timeout: config.NavigationTimeout(),
	}

	c := colly.NewCollector(
		colly.UserAgent(config.UserAgent),
	)
	// 状态码>=400的响应也走OnResponse,由驱动自己分类失败类型
	c.ParseHTTPErrorResponse = true
	c.SetClient(httpClient)
	c.SetRequestTimeout(config.NavigationTimeout())
	c.WithTransport(httpClient.Transport)

	utils.Debugf("静态驱动: HTTP超时%v, TLS证书验证已禁用", config.NavigationTimeout())

	return &StaticDriver{
		base:   c,
		config: config,
	}
}

// Render 抓取页面并提取链接
// 每次渲染克隆一个collector,避免Colly内部的访问历史跨URL串扰,
// 去重完全交给上层的边界队列。
func (sd *StaticDriver) Render(ctx context.Context, pageURL string) (*models.PageResult, error) {
	c := sd.base.Clone()
	c.AllowURLRevisit = true

	result := &models.PageResult{
		URL:      pageURL,
		FinalURL: pageURL,
	}
	var fetchErr error

	c.OnRequest(func(r *colly.Request) {
		r.Ctx.Put("origin", pageURL)
	})

	c.OnResponse(func(r *colly.Response) {
		body := r.Body
		if encoding := r.Headers.Get("Content-Encoding"); encoding != "" {
			decompressed, err := decompressBody(encoding, r.Body)
			if err != nil {
				utils.Warnf("解压响应失败 [%s] (编码=%s): %v", pageURL, encoding, err)
			} else {
				body = decompressed
			}
		}

		if r.StatusCode >= 400 {
			// 4xx是确定性拒绝,重试无意义;5xx可能是临时过载
			if r.StatusCode < 500 {
				fetchErr = fmt.Errorf("%w: HTTP %d: %s", ErrPermanent, r.StatusCode, pageURL)
			} else {
				fetchErr = fmt.Errorf("%w: HTTP %d: %s", ErrNavigation, r.StatusCode, pageURL)
			}
			return
		}

		finalURL := r.Request.URL.String()
		result.FinalURL = finalURL

		links, title, err := parseHTMLLinks(body, r.Request.URL)
		if err != nil {
			fetchErr = fmt.Errorf("%w: 解析HTML失败: %v", ErrNavigation, err)
			return
		}
		result.Links = links
		result.Title = title
	})

	c.OnError(func(r *colly.Response, err error) {
		fetchErr = classifyHTTPError(pageURL, err)
	})

	// Colly不接收context,在发起前检查一次取消状态
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	if err := c.Visit(pageURL); err != nil {
		return nil, classifyHTTPError(pageURL, err)
	}
	c.Wait()

	if fetchErr != nil {
		return nil, fetchErr
	}

	utils.Debugf("静态抓取完成 [%s]: %d个链接", pageURL, len(result.Links))
	return result, nil
}

// parseHTMLLinks 从HTML解析<a href>绝对链接和<title>
func parseHTMLLinks(body []byte, base *url.URL) ([]string, string, error) {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, "", err
	}

	seen := make(map[string]struct{})
	var links []string
	var title string

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "a":
				for _, attr := range n.Attr {
					if attr.Key != "href" {
						continue
					}
					ref, err := base.Parse(strings.TrimSpace(attr.Val))
					if err != nil {
						continue
					}
					abs := ref.String()
					if _, dup := seen[abs]; !dup {
						seen[abs] = struct{}{}
						links = append(links, abs)
					}
				}
			case "title":
				if title == "" && n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
					title = strings.TrimSpace(n.FirstChild.Data)
				}
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)

	return links, title, nil
}

// classifyHTTPError 将HTTP层错误归类为瞬时或永久失败
func classifyHTTPError(pageURL string, err error) error {
	msg := strings.ToLower(err.Error())

	if strings.Contains(msg, "no such host") ||
		strings.Contains(msg, "unsupported protocol scheme") ||
		strings.Contains(msg, "missing url") {
		return fmt.Errorf("%w: %s: %v", ErrPermanent, pageURL, err)
	}

	return fmt.Errorf("%w: %s: %v", ErrNavigation, pageURL, err)
}

// decompressBody 根据Content-Encoding头部解压响应体
// 支持 gzip, deflate, br (Brotli) 三种压缩格式
func decompressBody(contentEncoding string, body []byte) ([]byte, error) {
	encoding := strings.ToLower(strings.TrimSpace(contentEncoding))

	switch encoding {
	case "gzip":
		reader, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("gzip解压失败: %w", err)
		}
		defer reader.Close()

		decompressed, err := io.ReadAll(reader)
		if err != nil {
			return nil, fmt.Errorf("gzip读取失败: %w", err)
		}
		return decompressed, nil

	case "deflate":
		reader := flate.NewReader(bytes.NewReader(body))
		defer reader.Close()

		decompressed, err := io.ReadAll(reader)
		if err != nil {
			return nil, fmt.Errorf("deflate读取失败: %w", err)
		}
		return decompressed, nil

	case "br":
		reader := brotli.NewReader(bytes.NewReader(body))
		decompressed, err := io.ReadAll(reader)
		if err != nil {
			return nil, fmt.Errorf("brotli读取失败: %w", err)
		}
		return decompressed, nil

	case "":
		return body, nil

	default:
		utils.Warnf("未知的Content-Encoding: %s", contentEncoding)
		return body, nil
	}
}
