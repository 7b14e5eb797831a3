package translation

import (
	"context"
	"errors"
	"fmt"

	"github.com/nerdneilsfield/gemma-translator/pkg/providers"
	"go.uber.org/zap"
)

// OutcomeStatus 一次运行的终止状态
type OutcomeStatus int

const (
	OutcomeCompleted   OutcomeStatus = iota // 全部分块完成
	OutcomeInterrupted                      // 外部取消
	OutcomeFailed                           // 某个分块失败
)

// String 返回状态名称
func (s OutcomeStatus) String() string {
	switch s {
	case OutcomeCompleted:
		return "completed"
	case OutcomeInterrupted:
		return "interrupted"
	case OutcomeFailed:
		return "failed"
	default:
		return fmt.Sprintf("OutcomeStatus(%d)", int(s))
	}
}

// Outcome 运行结果，无论何种状态都带有已完成的结果
type Outcome struct {
	Status      OutcomeStatus
	FailedIndex int   // 失败分块序号（从 0 开始），其他状态为 -1
	Err         error // 失败原因或写出错误；中断本身不是错误
	Completed   int
	Total       int
	Results     []Result
	Saved       bool // 是否已写出（部分）文档
}

// ProgressReporter 接收 (已完成, 总数) 进度，不影响控制流
type ProgressReporter interface {
	Report(completed, total int)
}

// Driver 顺序翻译驱动：逐块调用提供商，失败或中断时写出已完成部分
type Driver struct {
	provider     providers.TranslationProvider
	progress     ProgressReporter
	systemPrompt string
	logger       *zap.Logger
}

// DriverOption 驱动选项
type DriverOption func(*Driver)

// WithProgress 设置进度报告器
func WithProgress(p ProgressReporter) DriverOption {
	return func(d *Driver) {
		d.progress = p
	}
}

// WithLogger 设置日志
func WithLogger(logger *zap.Logger) DriverOption {
	return func(d *Driver) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithSystemPrompt 设置额外的系统指令
func WithSystemPrompt(prompt string) DriverOption {
	return func(d *Driver) {
		d.systemPrompt = prompt
	}
}

// NewDriver 创建翻译驱动
func NewDriver(provider providers.TranslationProvider, opts ...DriverOption) *Driver {
	d := &Driver{
		provider: provider,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run 从会话的第一个待翻译分块开始按序翻译。
// ctx 是取消令牌，只在分块之间检查；正在进行的请求使用不可取消的上下文，允许其自行完成，
// 但中断后提供商不会再发起重试。
func (d *Driver) Run(ctx context.Context, session *Session) Outcome {
	total := session.Total()
	callCtx := providers.Detach(ctx)
	log := d.logger.With(zap.String("session", session.ID), zap.Int("total", total))

	if session.Completed() > 0 {
		log.Info("resuming translation", zap.Int("completed", session.Completed()))
		d.report(session.Completed(), total)
	}

	for i := session.Next(); i < total; i++ {
		if ctx.Err() != nil {
			session.mark(i, StateInterrupted)
			log.Warn("translation interrupted",
				zap.Int("chunk", i),
				zap.Int("completed", session.Completed()))
			return d.finish(session, OutcomeInterrupted, -1, nil)
		}

		chunk := session.Chunks[i]
		session.mark(i, StateInProgress)
		log.Debug("translating chunk",
			zap.Int("chunk", i),
			zap.Int("chars", chunk.Len()))

		text, err := d.translateChunk(callCtx, session.Languages, chunk)
		if err != nil && ctx.Err() != nil {
			// 请求进行中收到中断，失败不再当作错误
			session.mark(i, StateInterrupted)
			log.Warn("translation interrupted during a failed request",
				zap.Int("chunk", i),
				zap.Int("completed", session.Completed()),
				zap.Error(err))
			return d.finish(session, OutcomeInterrupted, -1, nil)
		}
		if err != nil {
			session.mark(i, StateFailed)
			log.Error("chunk translation failed", zap.Int("chunk", i), zap.Error(err))
			return d.finish(session, OutcomeFailed, i, &ChunkError{Index: i, Total: total, Err: err})
		}

		if err := session.Record(Result{Index: i, Text: text}); err != nil {
			if errors.Is(err, ErrResultGap) {
				session.mark(i, StateFailed)
				log.Error("chunk result rejected", zap.Int("chunk", i), zap.Error(err))
				return d.finish(session, OutcomeFailed, i, &ChunkError{Index: i, Total: total, Err: err})
			}
			log.Warn("checkpoint save failed", zap.Int("chunk", i), zap.Error(err))
		}
		d.report(session.Completed(), total)
	}

	log.Info("translation completed")
	return d.finish(session, OutcomeCompleted, -1, nil)
}

// translateChunk 为单个分块构造请求并调用提供商
func (d *Driver) translateChunk(ctx context.Context, languages LanguagePair, chunk Chunk) (string, error) {
	prompt, err := BuildPrompt(PromptData{LanguagePair: languages, Text: chunk.Text})
	if err != nil {
		return "", err
	}

	resp, err := d.provider.Translate(ctx, &providers.ProviderRequest{
		Text:           chunk.Text,
		Prompt:         prompt,
		SystemPrompt:   d.systemPrompt,
		SourceLanguage: languages.SourceLang,
		TargetLanguage: languages.TargetLang,
		Metadata: map[string]interface{}{
			"chunk_index": chunk.Index,
		},
	})
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

// finish 写出结果并构造 Outcome
func (d *Driver) finish(session *Session, status OutcomeStatus, failedIndex int, cause error) Outcome {
	saved, err := session.finish(status == OutcomeCompleted)
	if err != nil {
		d.logger.Error("failed to save translation", zap.String("session", session.ID), zap.Error(err))
		cause = errors.Join(cause, err)
	}

	return Outcome{
		Status:      status,
		FailedIndex: failedIndex,
		Err:         cause,
		Completed:   session.Completed(),
		Total:       session.Total(),
		Results:     session.Results(),
		Saved:       saved,
	}
}

func (d *Driver) report(completed, total int) {
	if d.progress != nil {
		d.progress.Report(completed, total)
	}
}
