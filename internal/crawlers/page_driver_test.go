package crawlers

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/RecoveryAshes/ProductFind/internal/models"
)

func TestScrollUntilStableEarlyStop(t *testing.T) {
	// 第2步后高度不再变化, 应提前停止而不是滚满3步
	heights := []int{100, 200, 200, 200}
	measured := 0
	scrolls := 0

	steps, err := scrollUntilStable(context.Background(), 3, 0,
		func() (int, error) {
			h := heights[measured]
			measured++
			return h, nil
		},
		func() error {
			scrolls++
			return nil
		})

	if err != nil {
		t.Fatalf("滚动失败: %v", err)
	}
	if steps != 2 {
		t.Errorf("高度稳定后应在第2步停止, 实际%d步", steps)
	}
	if scrolls != 2 {
		t.Errorf("期望执行2次滚动, 实际%d次", scrolls)
	}
}

func TestScrollUntilStableMaxSteps(t *testing.T) {
	// 高度持续增长时受步数上限约束
	height := 0
	scrolls := 0

	steps, err := scrollUntilStable(context.Background(), 5, 0,
		func() (int, error) {
			height += 100
			return height, nil
		},
		func() error {
			scrolls++
			return nil
		})

	if err != nil {
		t.Fatalf("滚动失败: %v", err)
	}
	if steps != 5 {
		t.Errorf("期望达到上限5步, 实际%d步", steps)
	}
	if scrolls != 5 {
		t.Errorf("期望执行5次滚动, 实际%d次", scrolls)
	}
}

func TestScrollUntilStableContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := scrollUntilStable(ctx, 10, time.Second,
		func() (int, error) { return 100, nil },
		func() error { return nil })

	if !errors.Is(err, context.Canceled) {
		t.Errorf("context取消后应返回取消错误, 实际: %v", err)
	}
}

func TestScrollUntilStableMeasureError(t *testing.T) {
	wantErr := fmt.Errorf("页面已关闭")

	_, err := scrollUntilStable(context.Background(), 10, 0,
		func() (int, error) { return 0, wantErr },
		func() error { return nil })

	if !errors.Is(err, wantErr) {
		t.Errorf("测量失败应向上传播, 实际: %v", err)
	}
}

func TestClassifyNavigationError(t *testing.T) {
	tests := []struct {
		name      string
		errMsg    string
		transient bool
	}{
		{"域名无法解析", "navigation failed: net::ERR_NAME_NOT_RESOLVED", false},
		{"无效URL", "navigation failed: net::ERR_INVALID_URL", false},
		{"未知协议", "navigation failed: net::ERR_UNKNOWN_URL_SCHEME", false},
		{"连接超时", "navigation failed: net::ERR_CONNECTION_TIMED_OUT", true},
		{"连接被重置", "navigation failed: net::ERR_CONNECTION_RESET", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classifyNavigationError("https://a.com", fmt.Errorf("%s", tt.errMsg))
			if IsTransient(err) != tt.transient {
				t.Errorf("期望瞬时=%v, 错误=%v", tt.transient, err)
			}
		})
	}
}

func TestNewDynamicDriverBlockConfig(t *testing.T) {
	config := models.CrawlConfig{
		BlockedResourceTypes: []string{"Image", " stylesheet ", "unknown-type", "font"},
		BlockedURLKeywords:   []string{"Google-Analytics", "  ", "doubleclick"},
	}

	dd := NewDynamicDriver(nil, config)

	if len(dd.blockedTypes) != 3 {
		t.Errorf("期望识别3种资源类型, 实际%d种", len(dd.blockedTypes))
	}
	if len(dd.blockedKeywords) != 2 {
		t.Errorf("期望2个关键词, 实际%d个", len(dd.blockedKeywords))
	}
	for _, kw := range dd.blockedKeywords {
		if kw != "google-analytics" && kw != "doubleclick" {
			t.Errorf("关键词应统一小写: %q", kw)
		}
	}
}
