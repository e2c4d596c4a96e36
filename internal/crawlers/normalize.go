package crawlers

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// NormalizeURL 归一化URL,归一化结果同时作为去重键
// 规则:
//   - scheme和host小写
//   - 去掉fragment
//   - 去掉默认端口(:80/:443)
//   - 剥离跟踪查询参数(trackingParams中的key以及utm_前缀)
//   - 剩余查询参数按key排序重编码,保证等价URL字符串相等
//   - 去掉末尾斜杠(根路径除外)
func NormalizeURL(rawURL string, trackingParams map[string]struct{}) (string, error) {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("URL格式无效: %w", err)
	}

	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", fmt.Errorf("不支持的协议: %s", parsed.Scheme)
	}
	parsed.Scheme = scheme

	host := strings.ToLower(parsed.Host)
	if (scheme == "http" && strings.HasSuffix(host, ":80")) ||
		(scheme == "https" && strings.HasSuffix(host, ":443")) {
		host = host[:strings.LastIndex(host, ":")]
	}
	if host == "" {
		return "", fmt.Errorf("URL缺少主机名")
	}
	parsed.Host = host

	parsed.Fragment = ""

	// 剥离跟踪参数后重编码,url.Values.Encode按key排序,保证确定性
	if parsed.RawQuery != "" {
		query := parsed.Query()
		for key := range query {
			if isTrackingParam(key, trackingParams) {
				query.Del(key)
			}
		}
		parsed.RawQuery = query.Encode()
	}

	if parsed.Path == "" {
		parsed.Path = "/"
	} else if parsed.Path != "/" {
		parsed.Path = strings.TrimSuffix(parsed.Path, "/")
	}

	return parsed.String(), nil
}

// normalizeParamKey 跟踪参数key统一小写比较
func normalizeParamKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

// isTrackingParam 判断查询参数是否为跟踪参数
func isTrackingParam(key string, trackingParams map[string]struct{}) bool {
	lower := strings.ToLower(key)
	if strings.HasPrefix(lower, "utm_") {
		return true
	}
	_, ok := trackingParams[lower]
	return ok
}

// RegistrableDomain 提取主机名的可注册域名(eTLD+1)
// publicsuffix解析失败时(如IP地址、内网主机名)退化为去掉www.前缀的主机名,
// 与原始的同域判断保持兼容。
func RegistrableDomain(host string) string {
	host = strings.ToLower(host)
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}

	etld1, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return strings.TrimPrefix(host, "www.")
	}
	return etld1
}
