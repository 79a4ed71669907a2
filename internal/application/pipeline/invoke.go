// Package pipeline 实现转录到知识图谱的处理流水线
package pipeline

import (
	"context"
	stderrors "errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/semaphore"

	apperrors "vidsum-ai-api/pkg/errors"
	"vidsum-ai-api/pkg/logger"
	"vidsum-ai-api/pkg/metrics"
	"vidsum-ai-api/pkg/tracer"
)

// Backoff 指数退避配置
type Backoff struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
}

// Delay 计算第 retry 次重试前的等待时间（retry 从 0 开始）
func (b Backoff) Delay(retry int) time.Duration {
	backoff := b.Initial
	for i := 0; i < retry; i++ {
		backoff = time.Duration(float64(backoff) * b.Multiplier)
		if b.Max > 0 && backoff > b.Max {
			backoff = b.Max
			break
		}
	}
	return backoff
}

// CallPolicy 外部能力调用策略：单次超时 + 有界重试
// Gate 非空时每次尝试先占用一个槽位，等待槽位的时间不计入单次超时
type CallPolicy struct {
	Timeout    time.Duration
	MaxRetries int
	Backoff    Backoff
	Gate       *semaphore.Weighted
}

// Invoke 按策略调用外部能力
// 单次调用超时映射为 ErrCapabilityTimeout，其他失败映射为 ErrCapabilityFailed；
// 父 context 取消时立即返回，不再重试。
func Invoke[T any](ctx context.Context, capability string, policy CallPolicy, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	ctx, span := tracer.StartWithAttrs(ctx, "capability."+capability, attribute.String("capability", capability))
	var lastErr error
	defer func() { tracer.End(span, lastErr) }()

	for attempt := 0; attempt <= policy.MaxRetries; attempt++ {
		if attempt > 0 {
			wait := policy.Backoff.Delay(attempt - 1)
			logger.Warn(ctx, "retrying capability call",
				"capability", capability,
				"attempt", attempt,
				"wait", wait.String(),
				"error", lastErr.Error(),
			)
			if err := sleepCtx(ctx, wait); err != nil {
				lastErr = parentError(ctx)
				return zero, lastErr
			}
		}

		start := time.Now()
		v, err := callOnce(ctx, policy, fn)
		metrics.CapabilityCallDuration.WithLabelValues(capability).Observe(time.Since(start).Seconds())
		if err == nil {
			metrics.CapabilityCallTotal.WithLabelValues(capability, "success").Inc()
			lastErr = nil
			return v, nil
		}

		if ctx.Err() != nil {
			metrics.CapabilityCallTotal.WithLabelValues(capability, "cancelled").Inc()
			lastErr = parentError(ctx)
			return zero, lastErr
		}

		lastErr = classify(err)
		if apperrors.Is(lastErr, apperrors.ErrCapabilityTimeout) {
			metrics.CapabilityCallTotal.WithLabelValues(capability, "timeout").Inc()
		} else {
			metrics.CapabilityCallTotal.WithLabelValues(capability, "error").Inc()
		}
		if !retryable(lastErr) {
			break
		}
	}
	return zero, lastErr
}

func callOnce[T any](ctx context.Context, policy CallPolicy, fn func(ctx context.Context) (T, error)) (T, error) {
	if policy.Gate != nil {
		if err := policy.Gate.Acquire(ctx, 1); err != nil {
			var zero T
			return zero, err
		}
		defer policy.Gate.Release(1)
	}
	if policy.Timeout <= 0 {
		return fn(ctx)
	}
	actx, cancel := context.WithTimeout(ctx, policy.Timeout)
	defer cancel()

	v, err := fn(actx)
	if err != nil && stderrors.Is(actx.Err(), context.DeadlineExceeded) {
		return v, apperrors.ErrCapabilityTimeout.WithError(err)
	}
	return v, err
}

func classify(err error) error {
	if stderrors.Is(err, context.DeadlineExceeded) {
		return apperrors.ErrCapabilityTimeout.WithError(err)
	}
	if apperrors.IsAppError(err) {
		return err
	}
	return apperrors.ErrCapabilityFailed.WithError(err)
}

// retryable 输入类错误重试无意义
func retryable(err error) bool {
	switch {
	case apperrors.Is(err, apperrors.ErrEmptyInput),
		apperrors.Is(err, apperrors.ErrInvalidParam),
		apperrors.Is(err, apperrors.ErrMalformedUpload):
		return false
	default:
		return true
	}
}

// parentError 将父 context 的结束原因映射为领域错误
func parentError(ctx context.Context) error {
	if stderrors.Is(ctx.Err(), context.DeadlineExceeded) {
		return apperrors.ErrCapabilityTimeout.WithError(ctx.Err())
	}
	return apperrors.ErrJobCancelled.WithError(ctx.Err())
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
