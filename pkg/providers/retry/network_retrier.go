package retry

import (
	"context"
	"errors"
	"time"

	"github.com/nerdneilsfield/gemma-translator/pkg/providers"
	goretry "github.com/sethvargo/go-retry"
	"go.uber.org/zap"
)

// RetryConfig 重试配置
type RetryConfig struct {
	// 失败后的最大重试次数，0 表示不重试
	MaxRetries int `json:"max_retries"`

	// 初始延迟时间（指数退避）
	InitialDelay time.Duration `json:"initial_delay"`

	// 单次等待的最大延迟
	MaxDelay time.Duration `json:"max_delay"`
}

// DefaultRetryConfig 返回默认重试配置
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:   2,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     10 * time.Second,
	}
}

// NetworkRetrier 只对连接失败和超时重试的提供商装饰器，模型错误立即返回
type NetworkRetrier struct {
	next   providers.Provider
	config RetryConfig
	logger *zap.Logger
}

// Wrap 为提供商加上重试；MaxRetries <= 0 时原样返回
func Wrap(next providers.Provider, config RetryConfig, logger *zap.Logger) providers.Provider {
	if config.MaxRetries <= 0 {
		return next
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NetworkRetrier{
		next:   next,
		config: config,
		logger: logger,
	}
}

// Translate 执行带重试的翻译。
// 请求本身使用 ctx；翻译被中断（见 providers.Detach）后不再发起新的尝试，返回最后一次的错误。
func (nr *NetworkRetrier) Translate(ctx context.Context, req *providers.ProviderRequest) (*providers.ProviderResponse, error) {
	waitCtx, stop := waitContext(ctx)
	defer stop()

	var resp *providers.ProviderResponse
	var lastErr error
	attempt := 0

	err := goretry.Do(waitCtx, nr.backoff(), func(context.Context) error {
		current := req
		if attempt > 0 {
			current = withRetryMetadata(req, attempt)
		}
		attempt++

		var callErr error
		resp, callErr = nr.next.Translate(ctx, current)
		if callErr == nil {
			return nil
		}
		lastErr = callErr
		if providers.IsRetryable(callErr) && attempt <= nr.config.MaxRetries {
			if providers.Interrupted(ctx) {
				nr.logger.Info("translation interrupted, not retrying",
					zap.String("provider", nr.next.GetName()),
					zap.Int("attempt", attempt),
					zap.Error(callErr))
				return callErr
			}
			nr.logger.Warn("retrying translation request",
				zap.String("provider", nr.next.GetName()),
				zap.Int("attempt", attempt),
				zap.Int("max_retries", nr.config.MaxRetries),
				zap.Error(callErr))
			return goretry.RetryableError(callErr)
		}
		return callErr
	})
	if err != nil {
		// 退避等待期间被中断
		if lastErr != nil && errors.Is(err, context.Canceled) && providers.Interrupted(ctx) {
			return nil, lastErr
		}
		return nil, err
	}
	return resp, nil
}

// waitContext 退避等待用的上下文，中断信号到达时取消
func waitContext(ctx context.Context) (context.Context, context.CancelFunc) {
	waitCtx, cancel := context.WithCancel(ctx)
	interrupt := providers.InterruptSignal(ctx)
	if interrupt == nil {
		return waitCtx, cancel
	}
	go func() {
		select {
		case <-interrupt:
			cancel()
		case <-waitCtx.Done():
		}
	}()
	return waitCtx, cancel
}

// GetName 获取被包装提供商的名称
func (nr *NetworkRetrier) GetName() string {
	return nr.next.GetName()
}

// HealthCheck 健康检查不重试
func (nr *NetworkRetrier) HealthCheck(ctx context.Context) error {
	return nr.next.HealthCheck(ctx)
}

// backoff 每次调用生成新的退避序列
func (nr *NetworkRetrier) backoff() goretry.Backoff {
	initial := nr.config.InitialDelay
	if initial <= 0 {
		initial = DefaultRetryConfig().InitialDelay
	}
	b := goretry.NewExponential(initial)
	if nr.config.MaxDelay > 0 {
		b = goretry.WithCappedDuration(nr.config.MaxDelay, b)
	}
	return goretry.WithMaxRetries(uint64(nr.config.MaxRetries), b)
}

// withRetryMetadata 复制请求并标记重试次数
func withRetryMetadata(req *providers.ProviderRequest, attempt int) *providers.ProviderRequest {
	clone := *req
	clone.Metadata = make(map[string]interface{}, len(req.Metadata)+2)
	for k, v := range req.Metadata {
		clone.Metadata[k] = v
	}
	clone.Metadata["is_retry"] = true
	clone.Metadata["retry_count"] = attempt
	return &clone
}
