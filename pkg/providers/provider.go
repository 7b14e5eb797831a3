package providers

import (
	"context"
	"time"
)

// BaseConfig 基础配置
type BaseConfig struct {
	// API配置
	APIKey      string `json:"api_key,omitempty"`
	APIEndpoint string `json:"api_endpoint,omitempty"`

	// 单次请求超时
	Timeout time.Duration `json:"timeout"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() BaseConfig {
	return BaseConfig{
		Timeout: 5 * time.Minute, // 本地大模型生成较慢
	}
}

// TranslationProvider 提供商基础接口。
// 每次 Translate 只发出一次网络请求，不重试、不缓存，可在多个分块之间复用。
type TranslationProvider interface {
	// Translate 执行翻译
	Translate(ctx context.Context, req *ProviderRequest) (*ProviderResponse, error)

	// GetName 获取提供商名称
	GetName() string
}

// Provider 提供商接口（扩展 TranslationProvider）
type Provider interface {
	TranslationProvider

	// HealthCheck 检查服务是否可达、模型是否可用
	HealthCheck(ctx context.Context) error
}

// ProviderRequest 提供商请求
type ProviderRequest struct {
	Text           string                 `json:"text"`                     // 原文分块
	Prompt         string                 `json:"prompt,omitempty"`         // 渲染好的完整提示词，为空时由提供商自行构造
	SystemPrompt   string                 `json:"system_prompt,omitempty"`  // 额外的系统指令
	SourceLanguage string                 `json:"source_language,omitempty"`
	TargetLanguage string                 `json:"target_language,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
}

// ProviderResponse 提供商响应
type ProviderResponse struct {
	Text      string                 `json:"text"`
	Model     string                 `json:"model,omitempty"`
	TokensIn  int                    `json:"tokens_in,omitempty"`
	TokensOut int                    `json:"tokens_out,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}
