package stats

import (
	"context"
	"time"

	"github.com/nerdneilsfield/gemma-translator/pkg/providers"
)

// StatisticsMiddleware 统计中间件，记录每一次实际发出的请求
type StatisticsMiddleware struct {
	next         providers.Provider
	statsManager *StatsManager
}

// NewStatisticsMiddleware 创建统计中间件
func NewStatisticsMiddleware(next providers.Provider, statsManager *StatsManager) *StatisticsMiddleware {
	return &StatisticsMiddleware{
		next:         next,
		statsManager: statsManager,
	}
}

// Translate 带统计的翻译方法
func (sm *StatisticsMiddleware) Translate(ctx context.Context, req *providers.ProviderRequest) (*providers.ProviderResponse, error) {
	startTime := time.Now()
	resp, err := sm.next.Translate(ctx, req)

	result := RequestResult{
		Success: err == nil,
		Latency: time.Since(startTime),
		IsRetry: isRetry(req),
	}
	if err != nil {
		result.ErrorType = classifyError(err)
	} else if resp != nil {
		result.TokensIn = resp.TokensIn
		result.TokensOut = resp.TokensOut
	}
	sm.statsManager.RecordRequest(result)

	return resp, err
}

// GetName 获取提供商名称
func (sm *StatisticsMiddleware) GetName() string {
	return sm.next.GetName()
}

// HealthCheck 健康检查不计入统计
func (sm *StatisticsMiddleware) HealthCheck(ctx context.Context) error {
	return sm.next.HealthCheck(ctx)
}

func isRetry(req *providers.ProviderRequest) bool {
	if req == nil || req.Metadata == nil {
		return false
	}
	retry, _ := req.Metadata["is_retry"].(bool)
	return retry
}

// classifyError 按失败类型归类错误
func classifyError(err error) string {
	if kind, ok := providers.KindOf(err); ok {
		return kind.String()
	}
	return "unknown"
}
