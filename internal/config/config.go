package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/nerdneilsfield/gemma-translator/pkg/providers/factory"
	"github.com/nerdneilsfield/gemma-translator/pkg/translation"
)

// 配置键名，同时用于 YAML 和环境变量（GEMMA_<KEY>）
const (
	KeyModelName      = "model_name"
	KeyAPIBase        = "api_base"
	KeyAPIType        = "api_type"
	KeyAPIKey         = "api_key"
	KeySourceLang     = "source_lang"
	KeySourceCode     = "source_code"
	KeyTargetLang     = "target_lang"
	KeyTargetCode     = "target_code"
	KeyChunkSize      = "chunk_size"
	KeyChunkOverlap   = "chunk_overlap"
	KeyRequestTimeout = "request_timeout"
	KeyMaxRetries     = "max_retries"
	KeyTemperature    = "temperature"
	KeyMaxTokens      = "max_tokens"
	KeySystemPrompt   = "system_prompt"
	KeyLogLevel       = "log_level"
	KeyCheckpoint     = "checkpoint"
)

// Keys 所有配置键
var Keys = []string{
	KeyModelName, KeyAPIBase, KeyAPIType, KeyAPIKey,
	KeySourceLang, KeySourceCode, KeyTargetLang, KeyTargetCode,
	KeyChunkSize, KeyChunkOverlap, KeyRequestTimeout, KeyMaxRetries,
	KeyTemperature, KeyMaxTokens, KeySystemPrompt, KeyLogLevel, KeyCheckpoint,
}

// Config 解析后的完整配置
type Config struct {
	ModelName      string  `mapstructure:"model_name" yaml:"model_name"`
	APIBase        string  `mapstructure:"api_base" yaml:"api_base"`
	APIType        string  `mapstructure:"api_type" yaml:"api_type"`
	APIKey         string  `mapstructure:"api_key" yaml:"api_key"`
	SourceLang     string  `mapstructure:"source_lang" yaml:"source_lang"`
	SourceCode     string  `mapstructure:"source_code" yaml:"source_code"`
	TargetLang     string  `mapstructure:"target_lang" yaml:"target_lang"`
	TargetCode     string  `mapstructure:"target_code" yaml:"target_code"`
	ChunkSize      int     `mapstructure:"chunk_size" yaml:"chunk_size"`
	ChunkOverlap   int     `mapstructure:"chunk_overlap" yaml:"chunk_overlap"`
	RequestTimeout int     `mapstructure:"request_timeout" yaml:"request_timeout"` // 秒
	MaxRetries     int     `mapstructure:"max_retries" yaml:"max_retries"`
	Temperature    float64 `mapstructure:"temperature" yaml:"temperature"`
	MaxTokens      int     `mapstructure:"max_tokens" yaml:"max_tokens"` // 0 表示使用模型默认值
	SystemPrompt   string  `mapstructure:"system_prompt" yaml:"system_prompt"`
	LogLevel       string  `mapstructure:"log_level" yaml:"log_level"`
	Checkpoint     bool    `mapstructure:"checkpoint" yaml:"checkpoint"`
}

// Defaults 返回默认配置
func Defaults() Config {
	return Config{
		ModelName:      "translategemma:12b",
		APIBase:        "http://localhost:11434",
		APIType:        factory.TypeOllama,
		SourceLang:     "English",
		SourceCode:     "en",
		TargetLang:     "Spanish",
		TargetCode:     "es",
		ChunkSize:      1000,
		ChunkOverlap:   0,
		RequestTimeout: 300,
		MaxRetries:     2,
		Temperature:    0.1,
		LogLevel:       "info",
		Checkpoint:     true,
	}
}

// Partial 单个配置来源，nil 字段表示该来源未设置
type Partial struct {
	ModelName      *string
	APIBase        *string
	APIType        *string
	APIKey         *string
	SourceLang     *string
	SourceCode     *string
	TargetLang     *string
	TargetCode     *string
	ChunkSize      *int
	ChunkOverlap   *int
	RequestTimeout *int
	MaxRetries     *int
	Temperature    *float64
	MaxTokens      *int
	SystemPrompt   *string
	LogLevel       *string
	Checkpoint     *bool
}

// Resolve 依次叠加各来源，后面的来源覆盖前面的。
// 调用方按 Resolve(defaults, env, file, cli) 的顺序传入。
func Resolve(defaults Config, layers ...Partial) Config {
	c := defaults
	for _, p := range layers {
		setString(&c.ModelName, p.ModelName)
		setString(&c.APIBase, p.APIBase)
		setString(&c.APIType, p.APIType)
		setString(&c.APIKey, p.APIKey)
		setString(&c.SourceLang, p.SourceLang)
		setString(&c.SourceCode, p.SourceCode)
		setString(&c.TargetLang, p.TargetLang)
		setString(&c.TargetCode, p.TargetCode)
		setInt(&c.ChunkSize, p.ChunkSize)
		setInt(&c.ChunkOverlap, p.ChunkOverlap)
		setInt(&c.RequestTimeout, p.RequestTimeout)
		setInt(&c.MaxRetries, p.MaxRetries)
		if p.Temperature != nil {
			c.Temperature = *p.Temperature
		}
		setInt(&c.MaxTokens, p.MaxTokens)
		setString(&c.SystemPrompt, p.SystemPrompt)
		setString(&c.LogLevel, p.LogLevel)
		if p.Checkpoint != nil {
			c.Checkpoint = *p.Checkpoint
		}
	}
	return c
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

func setInt(dst *int, src *int) {
	if src != nil {
		*dst = *src
	}
}

// Validate 检查配置，所有错误都包装 translation.ErrConfig
func (c Config) Validate() error {
	required := []struct {
		key   string
		value string
	}{
		{KeyModelName, c.ModelName},
		{KeyAPIBase, c.APIBase},
		{KeySourceLang, c.SourceLang},
		{KeySourceCode, c.SourceCode},
		{KeyTargetLang, c.TargetLang},
		{KeyTargetCode, c.TargetCode},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return configError("%s must not be empty", r.key)
		}
	}

	switch strings.ToLower(c.APIType) {
	case factory.TypeOllama, factory.TypeOpenAI:
	default:
		return configError("unsupported %s %q (want %s or %s)", KeyAPIType, c.APIType, factory.TypeOllama, factory.TypeOpenAI)
	}

	if err := c.ChunkSpec().Validate(); err != nil {
		return err
	}
	if c.RequestTimeout <= 0 {
		return configError("%s must be positive, got %d", KeyRequestTimeout, c.RequestTimeout)
	}
	if c.MaxRetries < 0 {
		return configError("%s must not be negative, got %d", KeyMaxRetries, c.MaxRetries)
	}
	if c.MaxTokens < 0 {
		return configError("%s must not be negative, got %d", KeyMaxTokens, c.MaxTokens)
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return configError("%s must be between 0 and 2, got %g", KeyTemperature, c.Temperature)
	}
	return nil
}

// ChunkSpec 分块参数
func (c Config) ChunkSpec() translation.ChunkSpec {
	return translation.ChunkSpec{Size: c.ChunkSize, Overlap: c.ChunkOverlap}
}

// Languages 语言对
func (c Config) Languages() translation.LanguagePair {
	return translation.LanguagePair{
		SourceLang: c.SourceLang,
		SourceCode: c.SourceCode,
		TargetLang: c.TargetLang,
		TargetCode: c.TargetCode,
	}
}

// Timeout 单次请求超时
func (c Config) Timeout() time.Duration {
	return time.Duration(c.RequestTimeout) * time.Second
}

// Masked 返回隐藏 API key 的副本，用于展示
func (c Config) Masked() Config {
	if c.APIKey == "" {
		return c
	}
	masked := c
	if len(c.APIKey) <= 8 {
		masked.APIKey = "****"
	} else {
		masked.APIKey = c.APIKey[:4] + "****" + c.APIKey[len(c.APIKey)-4:]
	}
	return masked
}

func configError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", translation.ErrConfig, fmt.Sprintf(format, args...))
}
