package stats

import (
	"sync"
	"time"
)

// ProviderStats 单次运行中提供商的请求统计
type ProviderStats struct {
	ProviderName       string           `json:"provider_name"`
	ModelName          string           `json:"model_name"`
	TotalRequests      int64            `json:"total_requests"`
	SuccessfulRequests int64            `json:"successful_requests"`
	FailedRequests     int64            `json:"failed_requests"`
	RetryAttempts      int64            `json:"retry_attempts"`
	TotalTokensIn      int64            `json:"total_tokens_in"`
	TotalTokensOut     int64            `json:"total_tokens_out"`
	TotalLatency       time.Duration    `json:"total_latency"`
	MinLatency         time.Duration    `json:"min_latency"`
	MaxLatency         time.Duration    `json:"max_latency"`
	ErrorTypes         map[string]int64 `json:"error_types"` // 按失败类型统计
	FirstRequestTime   time.Time        `json:"first_request_time"`
	LastRequestTime    time.Time        `json:"last_request_time"`
}

// AverageLatency 平均请求耗时
func (ps ProviderStats) AverageLatency() time.Duration {
	if ps.TotalRequests == 0 {
		return 0
	}
	return ps.TotalLatency / time.Duration(ps.TotalRequests)
}

// SuccessRate 成功率（百分比）
func (ps ProviderStats) SuccessRate() float64 {
	if ps.TotalRequests == 0 {
		return 0
	}
	return float64(ps.SuccessfulRequests) / float64(ps.TotalRequests) * 100
}

// RequestResult 单次请求结果
type RequestResult struct {
	Success   bool
	Latency   time.Duration
	TokensIn  int
	TokensOut int
	ErrorType string
	IsRetry   bool
}

// StatsManager 统计管理器
type StatsManager struct {
	mu    sync.Mutex
	stats ProviderStats
}

// NewStatsManager 创建统计管理器
func NewStatsManager(provider, model string) *StatsManager {
	return &StatsManager{
		stats: ProviderStats{
			ProviderName: provider,
			ModelName:    model,
			ErrorTypes:   make(map[string]int64),
		},
	}
}

// RecordRequest 记录请求结果
func (sm *StatsManager) RecordRequest(result RequestResult) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	s := &sm.stats
	now := time.Now()
	if s.FirstRequestTime.IsZero() {
		s.FirstRequestTime = now
	}
	s.LastRequestTime = now

	s.TotalRequests++
	if result.IsRetry {
		s.RetryAttempts++
	}

	s.TotalLatency += result.Latency
	if s.MinLatency == 0 || result.Latency < s.MinLatency {
		s.MinLatency = result.Latency
	}
	if result.Latency > s.MaxLatency {
		s.MaxLatency = result.Latency
	}

	if !result.Success {
		s.FailedRequests++
		if result.ErrorType != "" {
			s.ErrorTypes[result.ErrorType]++
		}
		return
	}

	s.SuccessfulRequests++
	s.TotalTokensIn += int64(result.TokensIn)
	s.TotalTokensOut += int64(result.TokensOut)
}

// Snapshot 返回当前统计的副本
func (sm *StatsManager) Snapshot() ProviderStats {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	snapshot := sm.stats
	snapshot.ErrorTypes = make(map[string]int64, len(sm.stats.ErrorTypes))
	for k, v := range sm.stats.ErrorTypes {
		snapshot.ErrorTypes[k] = v
	}
	return snapshot
}
