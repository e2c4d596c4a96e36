package crawlers

import (
	"net/url"
	"regexp"
	"strings"
)

// Classification 链接分类结果
type Classification int

const (
	// ClassDiscard 丢弃: 跨域、非HTTP协议、无法解析或未匹配任何类别
	ClassDiscard Classification = iota

	// ClassProduct 商品页: 路径命中商品模式
	ClassProduct

	// ClassNavigable 可导航: 同一可注册域名下的普通页面,适合继续发现
	ClassNavigable
)

// String 分类名称
func (c Classification) String() string {
	switch c {
	case ClassProduct:
		return "product"
	case ClassNavigable:
		return "navigable"
	default:
		return "discard"
	}
}

// LinkFilter 链接分类器
// 职责: 把页面提取出的绝对链接分为商品页/可导航页/丢弃三类。
// 分类是(归一化URL, 来源域名, 配置)的纯函数,不携带任何已访问状态,
// 新颖性检查由Frontier的原子入队负责。
type LinkFilter struct {
	// 商品路径子串模式
	productSubstrings []string

	// 可编译为正则的商品模式
	productRegexps []*regexp.Regexp

	// 排除路径子串(登录/购物车/搜索等)
	excludedSubstrings []string

	// 归一化时剥离的跟踪参数
	trackingParams map[string]struct{}
}

// NewLinkFilter 创建链接分类器
// product模式优先尝试编译为正则,含正则元字符且编译失败的退化为子串匹配。
// 纯路径子串(如"/p/")本身也是合法正则,两种匹配结果一致。
func NewLinkFilter(productPatterns []string, excludedPatterns []string, trackingParams []string) *LinkFilter {
	lf := &LinkFilter{
		trackingParams: make(map[string]struct{}, len(trackingParams)),
	}

	for _, pattern := range productPatterns {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" {
			continue
		}
		if re, err := regexp.Compile(pattern); err == nil && pattern != regexp.QuoteMeta(pattern) {
			lf.productRegexps = append(lf.productRegexps, re)
		} else {
			lf.productSubstrings = append(lf.productSubstrings, pattern)
		}
	}

	for _, pattern := range excludedPatterns {
		pattern = strings.TrimSpace(pattern)
		if pattern != "" {
			lf.excludedSubstrings = append(lf.excludedSubstrings, pattern)
		}
	}

	for _, p := range trackingParams {
		lf.trackingParams[normalizeParamKey(p)] = struct{}{}
	}

	return lf
}

// TrackingParams 返回归一化用的跟踪参数集合(与Frontier共享同一份配置语义)
func (lf *LinkFilter) TrackingParams() map[string]struct{} {
	return lf.trackingParams
}

// Classify 分类一个绝对链接
// originDomain为来源种子的可注册域名。判定顺序:
//  1. 归一化失败或非HTTP(S) -> Discard
//  2. 跨可注册域名 -> Discard
//  3. 路径命中商品模式 -> Product
//  4. 路径命中排除模式 -> Discard
//  5. 其余同域链接 -> Navigable
func (lf *LinkFilter) Classify(absoluteURL string, originDomain string) Classification {
	normalized, err := NormalizeURL(absoluteURL, lf.trackingParams)
	if err != nil {
		return ClassDiscard
	}

	parsed, err := url.Parse(normalized)
	if err != nil {
		return ClassDiscard
	}

	if RegistrableDomain(parsed.Host) != originDomain {
		return ClassDiscard
	}

	if lf.matchesProduct(parsed.Path) {
		return ClassProduct
	}

	if lf.matchesExcluded(parsed.Path) {
		return ClassDiscard
	}

	return ClassNavigable
}

// Normalize 按分类器的跟踪参数配置归一化URL
func (lf *LinkFilter) Normalize(rawURL string) (string, error) {
	return NormalizeURL(rawURL, lf.trackingParams)
}

// matchesProduct 路径是否命中商品模式
func (lf *LinkFilter) matchesProduct(path string) bool {
	for _, substr := range lf.productSubstrings {
		if strings.Contains(path, substr) {
			return true
		}
	}
	for _, re := range lf.productRegexps {
		if re.MatchString(path) {
			return true
		}
	}
	return false
}

// matchesExcluded 路径是否命中排除模式
func (lf *LinkFilter) matchesExcluded(path string) bool {
	lower := strings.ToLower(path)
	for _, substr := range lf.excludedSubstrings {
		if strings.Contains(lower, substr) {
			return true
		}
	}
	return false
}
