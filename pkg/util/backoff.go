package util

import (
	"context"
	"time"
)

// Backoff 指数退避配置
type Backoff struct {
	MaxAttempts int
	Base        time.Duration
	Max         time.Duration
}

// DefaultBackoff 删除文件等幂等调用使用的默认退避：3 次，500ms 起步，翻倍，最多 5s
func DefaultBackoff() Backoff {
	return Backoff{
		MaxAttempts: 3,
		Base:        500 * time.Millisecond,
		Max:         5 * time.Second,
	}
}

// Delay 返回第 attempt 次失败后的等待时间（attempt 从 1 开始）
func (b Backoff) Delay(attempt int) time.Duration {
	d := b.Base
	for i := 1; i < attempt; i++ {
		d *= 2
		if b.Max > 0 && d >= b.Max {
			return b.Max
		}
	}
	if b.Max > 0 && d > b.Max {
		return b.Max
	}
	return d
}

// Retry 执行 fn，对可重试错误按退避策略重试。
// onRetry 在每次等待前调用，可为 nil。
func Retry(ctx context.Context, b Backoff, fn func(ctx context.Context) error, onRetry func(attempt int, err error, wait time.Duration)) error {
	if b.MaxAttempts <= 0 {
		b.MaxAttempts = 1
	}

	var err error
	for attempt := 1; ; attempt++ {
		err = fn(ctx)
		if err == nil {
			return nil
		}

		retryable, _ := IsRetryableError(err)
		if !ShouldRetry(attempt, b.MaxAttempts, retryable) {
			return err
		}

		wait := b.Delay(attempt)
		if onRetry != nil {
			onRetry(attempt, err, wait)
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
