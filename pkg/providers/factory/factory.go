package factory

import (
	"fmt"
	"strings"
	"time"

	"github.com/nerdneilsfield/gemma-translator/pkg/providers"
	"github.com/nerdneilsfield/gemma-translator/pkg/providers/ollama"
	"github.com/nerdneilsfield/gemma-translator/pkg/providers/openai"
	"github.com/nerdneilsfield/gemma-translator/pkg/providers/retry"
	"github.com/nerdneilsfield/gemma-translator/pkg/providers/stats"
	"go.uber.org/zap"
)

// 支持的接口类型
const (
	TypeOllama = "ollama"
	TypeOpenAI = "openai"
)

// Settings 创建提供商所需的配置
type Settings struct {
	APIType     string
	APIBase     string
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
	Retry       retry.RetryConfig
}

// ProviderFactory 提供商工厂
type ProviderFactory struct {
	statsManager *stats.StatsManager
	logger       *zap.Logger
}

// Option 工厂选项
type Option func(*ProviderFactory)

// WithStats 在重试层之内记录每一次请求
func WithStats(sm *stats.StatsManager) Option {
	return func(f *ProviderFactory) {
		f.statsManager = sm
	}
}

// WithLogger 设置日志
func WithLogger(logger *zap.Logger) Option {
	return func(f *ProviderFactory) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// New 创建新的提供商工厂
func New(opts ...Option) *ProviderFactory {
	f := &ProviderFactory{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// CreateProvider 根据配置创建提供商，依次套上统计和重试
func (f *ProviderFactory) CreateProvider(s Settings) (providers.Provider, error) {
	base, err := f.createBase(s)
	if err != nil {
		return nil, err
	}

	var p providers.Provider = base
	if f.statsManager != nil {
		p = stats.NewStatisticsMiddleware(p, f.statsManager)
	}
	return retry.Wrap(p, s.Retry, f.logger), nil
}

func (f *ProviderFactory) createBase(s Settings) (providers.Provider, error) {
	baseConfig := providers.DefaultConfig()
	baseConfig.APIKey = s.APIKey
	if s.Timeout > 0 {
		baseConfig.Timeout = s.Timeout
	}

	switch strings.ToLower(s.APIType) {
	case TypeOllama, "":
		config := ollama.DefaultConfig()
		baseConfig.APIEndpoint = orDefault(s.APIBase, config.APIEndpoint)
		config.BaseConfig = baseConfig
		config.Model = orDefault(s.Model, config.Model)
		config.Temperature = float32(s.Temperature)
		config.MaxTokens = s.MaxTokens
		return ollama.New(config), nil
	case TypeOpenAI:
		config := openai.DefaultConfig()
		baseConfig.APIEndpoint = openAIEndpoint(orDefault(s.APIBase, config.APIEndpoint))
		config.BaseConfig = baseConfig
		config.Model = orDefault(s.Model, config.Model)
		config.Temperature = float32(s.Temperature)
		config.MaxTokens = s.MaxTokens
		return openai.New(config), nil
	default:
		return nil, fmt.Errorf("unsupported api type: %s", s.APIType)
	}
}

// openAIEndpoint 补全 /v1 前缀，兼容直接填写 Ollama 地址的情况
func openAIEndpoint(base string) string {
	base = strings.TrimSuffix(base, "/")
	if strings.HasSuffix(base, "/v1") {
		return base
	}
	return base + "/v1"
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
