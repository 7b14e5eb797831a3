package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/nerdneilsfield/gemma-translator/pkg/providers"
)

const providerName = "ollama"

// Config Ollama配置
type Config struct {
	providers.BaseConfig
	Model       string  `json:"model"`
	Temperature float32 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	base := providers.DefaultConfig()
	base.APIEndpoint = "http://localhost:11434"
	return Config{
		BaseConfig:  base,
		Model:       "translategemma:12b",
		Temperature: 0.1,
		MaxTokens:   0,
	}
}

// Provider Ollama提供商
type Provider struct {
	config     Config
	httpClient *http.Client
}

// New 创建新的Ollama提供商
func New(config Config) *Provider {
	if config.APIEndpoint == "" {
		config.APIEndpoint = "http://localhost:11434"
	}
	config.APIEndpoint = strings.TrimSuffix(config.APIEndpoint, "/")

	return &Provider{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

// Translate 执行翻译
func (p *Provider) Translate(ctx context.Context, req *providers.ProviderRequest) (*providers.ProviderResponse, error) {
	prompt := req.Prompt
	if prompt == "" {
		prompt = fmt.Sprintf("Translate the following text from %s to %s. Please only return the translated text without any additional explanations:\n\n%s",
			req.SourceLanguage, req.TargetLanguage, req.Text)
	}

	generateReq := GenerateRequest{
		Model:  p.config.Model,
		Prompt: prompt,
		System: req.SystemPrompt,
		Stream: false,
		Options: map[string]interface{}{
			"temperature": p.config.Temperature,
		},
	}
	if p.config.MaxTokens > 0 {
		generateReq.Options["num_predict"] = p.config.MaxTokens
	}

	resp, err := p.generate(ctx, generateReq)
	if err != nil {
		return nil, err
	}

	text := strings.TrimSpace(resp.Response)
	if text == "" {
		return nil, providers.NewError(providers.FailureModel, providerName, "model returned an empty response", nil)
	}

	return &providers.ProviderResponse{
		Text:      text,
		Model:     resp.Model,
		TokensIn:  resp.PromptEvalCount,
		TokensOut: resp.EvalCount,
		Metadata: map[string]interface{}{
			"created_at":     resp.CreatedAt,
			"total_duration": resp.TotalDuration,
			"eval_duration":  resp.EvalDuration,
		},
	}, nil
}

// GetName 获取提供商名称
func (p *Provider) GetName() string {
	return providerName
}

// HealthCheck 检查服务是否可达以及模型是否已拉取
func (p *Provider) HealthCheck(ctx context.Context) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, p.config.APIEndpoint+"/api/tags", nil)
	if err != nil {
		return providers.NewError(providers.FailureConnection, providerName, "invalid endpoint", err)
	}
	p.setAuth(httpReq)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return providers.ClassifyTransportError(providerName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return providers.NewModelError(providerName, "failed to list models", resp.StatusCode)
	}

	var tags TagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return providers.NewError(providers.FailureModel, providerName, "failed to decode model list", err)
	}

	names := make([]string, 0, len(tags.Models))
	for _, m := range tags.Models {
		if m.Name == p.config.Model || m.Name == p.config.Model+":latest" || m.Model == p.config.Model {
			return nil
		}
		names = append(names, m.Name)
	}

	message := fmt.Sprintf("model %q not found, run: ollama pull %s", p.config.Model, p.config.Model)
	if similar := SimilarModels(p.config.Model, names); len(similar) > 0 {
		message += fmt.Sprintf(" (installed: %s)", strings.Join(similar, ", "))
	}
	return providers.NewError(providers.FailureModel, providerName, message, nil)
}

// maxSuggestions 模型缺失时最多提示的相近模型数
const maxSuggestions = 3

// SimilarModels 按模型族（标签之前的部分）模糊匹配已安装模型，距离近的在前
func SimilarModels(model string, installed []string) []string {
	family, _, _ := strings.Cut(model, ":")
	if family == "" {
		return nil
	}

	ranks := fuzzy.RankFindNormalizedFold(family, installed)
	sort.Sort(ranks)

	similar := make([]string, 0, maxSuggestions)
	for _, r := range ranks {
		if len(similar) == maxSuggestions {
			break
		}
		similar = append(similar, r.Target)
	}
	return similar
}

// generate 执行生成请求
func (p *Provider) generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.config.APIEndpoint+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return nil, providers.NewError(providers.FailureConnection, providerName, "invalid endpoint", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	p.setAuth(httpReq)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, providers.ClassifyTransportError(providerName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))

		message := resp.Status
		var apiErr APIError
		if json.Unmarshal(errBody, &apiErr) == nil && apiErr.ErrorMsg != "" {
			message = apiErr.ErrorMsg
		}
		return nil, providers.NewModelError(providerName, message, resp.StatusCode)
	}

	var generateResp GenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&generateResp); err != nil {
		// 读取中断或超时按传输错误处理，其余视为模型返回了无效内容
		if perr := providers.ClassifyTransportError(providerName, err); perr.Kind == providers.FailureTimeout || providers.IsConnectionError(err) {
			return nil, perr
		}
		return nil, providers.NewError(providers.FailureModel, providerName, "failed to decode response", err)
	}
	if generateResp.Error != "" {
		return nil, providers.NewModelError(providerName, generateResp.Error, resp.StatusCode)
	}

	return &generateResp, nil
}

// setAuth 反向代理后的 Ollama 可能需要 Bearer 令牌
func (p *Provider) setAuth(req *http.Request) {
	if p.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.config.APIKey)
	}
}

// GenerateRequest 生成请求
type GenerateRequest struct {
	Model   string                 `json:"model"`
	Prompt  string                 `json:"prompt"`
	System  string                 `json:"system,omitempty"`
	Stream  bool                   `json:"stream"`
	Options map[string]interface{} `json:"options,omitempty"`
}

// GenerateResponse 生成响应
type GenerateResponse struct {
	Model              string    `json:"model"`
	CreatedAt          time.Time `json:"created_at"`
	Response           string    `json:"response"`
	Done               bool      `json:"done"`
	Error              string    `json:"error,omitempty"`
	TotalDuration      int64     `json:"total_duration"`
	LoadDuration       int64     `json:"load_duration"`
	PromptEvalCount    int       `json:"prompt_eval_count"`
	PromptEvalDuration int64     `json:"prompt_eval_duration"`
	EvalCount          int       `json:"eval_count"`
	EvalDuration       int64     `json:"eval_duration"`
}

// TagsResponse /api/tags 响应
type TagsResponse struct {
	Models []ModelInfo `json:"models"`
}

// ModelInfo 本地模型信息
type ModelInfo struct {
	Name  string `json:"name"`
	Model string `json:"model"`
	Size  int64  `json:"size"`
}

// APIError API错误
type APIError struct {
	ErrorMsg string `json:"error"`
}

func (e *APIError) Error() string {
	return e.ErrorMsg
}
