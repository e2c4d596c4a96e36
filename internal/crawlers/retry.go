package crawlers

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/RecoveryAshes/ProductFind/internal/models"
	"github.com/RecoveryAshes/ProductFind/internal/utils"
)

// 错误类型定义
var (
	// ErrNavigation 导航超时或网络错误,瞬时,可重试
	ErrNavigation = errors.New("页面导航失败")

	// ErrPageCrashed 渲染上下文崩溃,瞬时,可重试
	ErrPageCrashed = errors.New("渲染上下文崩溃")

	// ErrPermanent URL格式错误/协议不支持/域名永久无法解析,不重试
	ErrPermanent = errors.New("永久性错误")
)

// IsTransient 判断错误是否属于可重试的瞬时失败
func IsTransient(err error) bool {
	return errors.Is(err, ErrNavigation) || errors.Is(err, ErrPageCrashed)
}

// RetryController 重试控制器
// 职责: 包装PageRenderer.Render调用,瞬时失败按指数退避+抖动重试,
// 永久失败立即放弃,重试耗尽返回携带失败类型和尝试次数的终态结果。
type RetryController struct {
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration

	rngMu sync.Mutex
	rng   *rand.Rand
}

// jitterFraction 退避抖动比例
// ±25%保证base×2^n序列在抖动后仍严格递增(前一档上界1.25x < 后一档下界1.5x),
// 同时错开大量worker对同一站点的重试风暴。
const jitterFraction = 0.25

// NewRetryController 创建重试控制器
func NewRetryController(maxAttempts int, baseDelay, maxDelay time.Duration) *RetryController {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &RetryController{
		maxAttempts: maxAttempts,
		baseDelay:   baseDelay,
		maxDelay:    maxDelay,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Do 执行带重试的渲染
// 总是返回非nil的PageResult: 成功结果或终态失败结果,错误不向上传播,
// 单个URL的失败由调用方记录日志后继续处理下一个条目。
func (rc *RetryController) Do(ctx context.Context, pageURL string, render func(context.Context) (*models.PageResult, error)) *models.PageResult {
	var lastErr error

	for attempt := 1; attempt <= rc.maxAttempts; attempt++ {
		result, err := render(ctx)
		if err == nil {
			result.Attempts = attempt
			return result
		}
		lastErr = err

		if errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled) {
			return terminalResult(pageURL, models.FailureCancelled, err, attempt)
		}

		if !IsTransient(err) {
			utils.Debugf("永久性失败,不重试 [%s]: %v", pageURL, err)
			return terminalResult(pageURL, models.FailurePermanent, err, attempt)
		}

		if attempt == rc.maxAttempts {
			break
		}

		delay := rc.BackoffDelay(attempt)
		utils.Warnf("第%d次尝试失败 [%s]: %v, %v后重试", attempt, pageURL, err, delay)

		select {
		case <-ctx.Done():
			return terminalResult(pageURL, models.FailureCancelled, ctx.Err(), attempt)
		case <-time.After(delay):
		}
	}

	kind := models.FailureNavigation
	if errors.Is(lastErr, ErrPageCrashed) {
		kind = models.FailureCrashed
	}
	return terminalResult(pageURL, kind, lastErr, rc.maxAttempts)
}

// BackoffDelay 计算第attempt次失败后的重试延迟
// delay = base × 2^(attempt-1) ± 抖动,上限maxDelay
func (rc *RetryController) BackoffDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	delay := rc.baseDelay << uint(attempt-1)
	if delay <= 0 || delay > rc.maxDelay {
		delay = rc.maxDelay
	}

	rc.rngMu.Lock()
	jitter := time.Duration((rc.rng.Float64()*2 - 1) * jitterFraction * float64(delay))
	rc.rngMu.Unlock()

	delay += jitter
	if delay > rc.maxDelay {
		delay = rc.maxDelay
	}
	if delay < rc.baseDelay/2 {
		delay = rc.baseDelay / 2
	}
	return delay
}

// terminalResult 构造终态失败结果
func terminalResult(pageURL string, kind models.FailureKind, err error, attempts int) *models.PageResult {
	message := ""
	if err != nil {
		message = err.Error()
	}
	return &models.PageResult{
		URL:      pageURL,
		Attempts: attempts,
		Failure: &models.PageFailure{
			Kind:    kind,
			Message: message,
		},
	}
}
