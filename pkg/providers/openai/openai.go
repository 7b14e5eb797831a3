package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/nerdneilsfield/gemma-translator/pkg/providers"
	goopenai "github.com/sashabaranov/go-openai"
)

const providerName = "openai"

// Config OpenAI兼容接口配置（Ollama /v1、llama.cpp server、vLLM 等）
type Config struct {
	providers.BaseConfig
	Model       string  `json:"model"`
	Temperature float32 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	base := providers.DefaultConfig()
	base.APIEndpoint = "http://localhost:11434/v1"
	return Config{
		BaseConfig:  base,
		Model:       "translategemma:12b",
		Temperature: 0.1,
	}
}

// Provider OpenAI兼容提供商
type Provider struct {
	config Config
	client *goopenai.Client
}

// New 创建新的提供商
func New(config Config) *Provider {
	clientConfig := goopenai.DefaultConfig(config.APIKey)
	if config.APIEndpoint != "" {
		// go-openai 的路径以斜杠开头，避免出现双斜杠
		clientConfig.BaseURL = strings.TrimSuffix(config.APIEndpoint, "/")
	}
	clientConfig.HTTPClient = &http.Client{
		Timeout: config.Timeout,
	}

	return &Provider{
		config: config,
		client: goopenai.NewClientWithConfig(clientConfig),
	}
}

// Translate 执行翻译
func (p *Provider) Translate(ctx context.Context, req *providers.ProviderRequest) (*providers.ProviderResponse, error) {
	prompt := req.Prompt
	if prompt == "" {
		prompt = fmt.Sprintf("Translate the following text from %s to %s:\n\n%s",
			req.SourceLanguage, req.TargetLanguage, req.Text)
	}

	var messages []goopenai.ChatCompletionMessage
	if req.SystemPrompt != "" {
		messages = append(messages, goopenai.ChatCompletionMessage{
			Role:    goopenai.ChatMessageRoleSystem,
			Content: req.SystemPrompt,
		})
	}
	messages = append(messages, goopenai.ChatCompletionMessage{
		Role:    goopenai.ChatMessageRoleUser,
		Content: prompt,
	})

	resp, err := p.client.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model:       p.config.Model,
		Messages:    messages,
		Temperature: p.config.Temperature,
		MaxTokens:   p.config.MaxTokens,
	})
	if err != nil {
		return nil, classifyError(err)
	}

	if len(resp.Choices) == 0 {
		return nil, providers.NewError(providers.FailureModel, providerName, "no choices returned", nil)
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return nil, providers.NewError(providers.FailureModel, providerName, "model returned an empty response", nil)
	}

	return &providers.ProviderResponse{
		Text:      text,
		Model:     resp.Model,
		TokensIn:  resp.Usage.PromptTokens,
		TokensOut: resp.Usage.CompletionTokens,
		Metadata: map[string]interface{}{
			"id":            resp.ID,
			"finish_reason": string(resp.Choices[0].FinishReason),
		},
	}, nil
}

// GetName 获取提供商名称
func (p *Provider) GetName() string {
	return providerName
}

// HealthCheck 通过列出模型检查服务是否可达
func (p *Provider) HealthCheck(ctx context.Context) error {
	if _, err := p.client.ListModels(ctx); err != nil {
		return classifyError(err)
	}
	return nil
}

// classifyError 将 go-openai 的错误映射为提供商失败类型
func classifyError(err error) error {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		perr := providers.NewModelError(providerName, apiErr.Message, apiErr.HTTPStatusCode)
		perr.Cause = err
		return perr
	}

	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		perr := providers.NewModelError(providerName, "request rejected", reqErr.HTTPStatusCode)
		perr.Cause = err
		return perr
	}

	return providers.ClassifyTransportError(providerName, err)
}
