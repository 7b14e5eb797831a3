package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/mattn/go-runewidth"
	"github.com/nerdneilsfield/gemma-translator/internal/config"
	"github.com/nerdneilsfield/gemma-translator/internal/progress"
	"github.com/nerdneilsfield/gemma-translator/pkg/document"
	"github.com/nerdneilsfield/gemma-translator/pkg/providers"
	"github.com/nerdneilsfield/gemma-translator/pkg/providers/factory"
	"github.com/nerdneilsfield/gemma-translator/pkg/providers/retry"
	"github.com/nerdneilsfield/gemma-translator/pkg/providers/stats"
	pprogress "github.com/nerdneilsfield/gemma-translator/pkg/progress"
	"github.com/nerdneilsfield/gemma-translator/pkg/translation"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// job 一次翻译任务的输入
type job struct {
	cfg        config.Config
	inputPath  string
	outputPath string
	text       string
	chunks     []translation.Chunk
	resume     bool
	log        *zap.Logger
}

// prepareJob 读取输入并分块，任何模型调用之前完成
func prepareJob(cfg config.Config, opts *options, inputPath string, log *zap.Logger) (*job, error) {
	text, err := document.ReadText(inputPath)
	if err != nil {
		return nil, err
	}

	chunks, err := translation.NewChunker(cfg.ChunkSpec()).Split(text)
	if err != nil {
		return nil, err
	}

	outputPath := opts.output
	if outputPath == "" {
		outputPath = document.OutputPath(inputPath, cfg.TargetCode)
	}

	log.Debug("document prepared",
		zap.String("input", inputPath),
		zap.String("output", outputPath),
		zap.Int("chars", utf8.RuneCountInString(text)),
		zap.Int("chunks", len(chunks)))

	return &job{
		cfg:        cfg,
		inputPath:  inputPath,
		outputPath: outputPath,
		text:       text,
		chunks:     chunks,
		resume:     opts.resume,
		log:        log,
	}, nil
}

// previewWidth 分块预览列宽
const previewWidth = 48

// printPlan 打印分块计划（--dry-run）
func printPlan(out io.Writer, j *job) {
	c := newConsole(out)
	c.header("📋 Translation plan")
	c.rule(60)
	c.info("Input:     %s (%d characters)", j.inputPath, utf8.RuneCountInString(j.text))
	c.info("Output:    %s", j.outputPath)
	c.info("Languages: %s", j.cfg.Languages())
	c.info("Model:     %s via %s (%s)", j.cfg.ModelName, j.cfg.APIType, j.cfg.APIBase)
	c.info("Chunks:    %d (size %d, overlap %d)", len(j.chunks), j.cfg.ChunkSize, j.cfg.ChunkOverlap)

	tw := table.NewWriter()
	tw.SetOutputMirror(out)
	tw.SetStyle(table.StyleLight)
	tw.AppendHeader(table.Row{"#", "Start", "End", "Chars", "Preview"})
	for _, ch := range j.chunks {
		tw.AppendRow(table.Row{ch.Index + 1, ch.Start, ch.End, ch.Len(), preview(ch.Text, previewWidth)})
	}
	tw.Render()
}

// preview 单行预览，换行显示为 ⏎
func preview(text string, width int) string {
	flat := strings.NewReplacer("\r", "", "\n", "⏎", "\t", " ").Replace(text)
	return runewidth.Truncate(flat, width, "…")
}

// translateJob 创建提供商、会话和驱动并执行翻译
func translateJob(ctx context.Context, cmd *cobra.Command, j *job) error {
	cfg := j.cfg
	out := newConsole(cmd.OutOrStdout())
	log := j.log

	statsManager := stats.NewStatsManager(cfg.APIType, cfg.ModelName)
	provider, err := factory.New(factory.WithStats(statsManager), factory.WithLogger(log)).
		CreateProvider(factory.Settings{
			APIType:     cfg.APIType,
			APIBase:     cfg.APIBase,
			APIKey:      cfg.APIKey,
			Model:       cfg.ModelName,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
			Timeout:     cfg.Timeout(),
			Retry: retry.RetryConfig{
				MaxRetries:   cfg.MaxRetries,
				InitialDelay: retry.DefaultRetryConfig().InitialDelay,
				MaxDelay:     retry.DefaultRetryConfig().MaxDelay,
			},
		})
	if err != nil {
		return fmt.Errorf("%w: %v", translation.ErrConfig, err)
	}

	if err := checkService(ctx, provider); err != nil {
		if ctx.Err() != nil {
			return translation.ErrInterrupted
		}
		out.fail("Model service check failed: %v", err)
		printHints(out, err, cfg)
		return err
	}

	session := newSession(j, out)

	out.header("🌐 Translating %s", j.inputPath)
	out.info("%s, %d chunks, model %s", cfg.Languages(), len(j.chunks), cfg.ModelName)
	if session.Completed() > 0 {
		out.info("Resuming after %d completed chunks (session %s)", session.Completed(), session.ID)
	}

	tracker := pprogress.NewTracker(len(j.chunks),
		pprogress.WithWriter(cmd.ErrOrStderr()),
		pprogress.WithMessage(cfg.Languages().SourceCode+" → "+cfg.Languages().TargetCode))
	driver := translation.NewDriver(provider,
		translation.WithProgress(tracker),
		translation.WithLogger(log),
		translation.WithSystemPrompt(cfg.SystemPrompt))

	start := time.Now()
	tracker.Start()
	outcome := driver.Run(ctx, session)
	tracker.Done(summarize(outcome, j, statsManager.Snapshot(), time.Since(start)))

	return reportOutcome(out, outcome, j)
}

// checkService 确认服务可达且模型可用
func checkService(ctx context.Context, provider providers.Provider) error {
	checkCtx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()
	return provider.HealthCheck(checkCtx)
}

// newSession 创建会话，按需挂接检查点并从检查点恢复
func newSession(j *job, out *console) *translation.Session {
	cfg := j.cfg
	var sessionOpts []translation.SessionOption

	cpPath := progress.PathFor(j.outputPath)
	meta := progress.Checkpoint{
		InputPath:    j.inputPath,
		InputSHA256:  progress.HashText(j.text),
		ChunkSize:    cfg.ChunkSize,
		ChunkOverlap: cfg.ChunkOverlap,
		TotalChunks:  len(j.chunks),
		SourceCode:   cfg.SourceCode,
		TargetCode:   cfg.TargetCode,
		Model:        cfg.ModelName,
	}

	var seed []translation.Result
	if j.resume {
		cp, err := progress.Load(cpPath)
		switch {
		case err != nil:
			out.warn("Ignoring unreadable checkpoint: %v", err)
		case cp == nil:
			out.warn("No checkpoint found at %s, starting from the beginning", cpPath)
		case !cp.Matches(meta):
			out.warn("Checkpoint %s belongs to a different input or settings, starting from the beginning", cpPath)
		default:
			seed = cp.Results()
			meta.SessionID = cp.SessionID
			sessionOpts = append(sessionOpts, translation.WithSessionID(cp.SessionID))
		}
	} else if _, err := os.Stat(cpPath); err == nil && cfg.Checkpoint {
		out.warn("Existing checkpoint %s will be replaced (use --resume to continue it)", cpPath)
	}

	var store *progress.CheckpointStore
	if cfg.Checkpoint {
		store = progress.NewCheckpointStore(cpPath, meta)
		sessionOpts = append(sessionOpts, translation.WithCheckpoint(store))
	}

	session := translation.NewSession(j.chunks, cfg.Languages(), document.NewFileSink(j.outputPath), sessionOpts...)
	if store != nil {
		store.SetSessionID(session.ID)
	}

	if len(seed) > 0 {
		if err := session.Seed(seed); err != nil {
			out.warn("Checkpoint could not be applied (%v), starting from the beginning", err)
			session = translation.NewSession(j.chunks, cfg.Languages(), document.NewFileSink(j.outputPath), sessionOpts...)
			if store != nil {
				store.SetSessionID(session.ID)
			}
		}
	}
	return session
}

// summarize 生成总结表格数据
func summarize(outcome translation.Outcome, j *job, s stats.ProviderStats, elapsed time.Duration) *pprogress.SummaryStats {
	outputChars := 0
	for _, r := range outcome.Results {
		outputChars += utf8.RuneCountInString(r.Text)
	}

	summary := &pprogress.SummaryStats{
		Outcome:         outcome.Status.String(),
		CompletedChunks: outcome.Completed,
		TotalChunks:     outcome.Total,
		InputChars:      utf8.RuneCountInString(j.text),
		OutputChars:     outputChars,
		TotalTime:       elapsed,
		Requests:        s.TotalRequests,
		Retries:         s.RetryAttempts,
		TokensIn:        s.TotalTokensIn,
		TokensOut:       s.TotalTokensOut,
		AverageLatency:  s.AverageLatency(),
	}
	if outcome.Saved {
		summary.OutputPath = j.outputPath
	}
	return summary
}

// reportOutcome 告知用户完成了多少分块以及文件保存位置
func reportOutcome(out *console, outcome translation.Outcome, j *job) error {
	switch outcome.Status {
	case translation.OutcomeCompleted:
		if outcome.Err != nil {
			out.fail("Translation finished but the output could not be written: %v", outcome.Err)
			return outcome.Err
		}
		out.success("Translation complete: %d chunks written to %s", outcome.Total, j.outputPath)
		return nil

	case translation.OutcomeInterrupted:
		out.warn("Interrupted after %d of %d chunks", outcome.Completed, outcome.Total)
		reportSaved(out, outcome, j)
		if outcome.Err != nil {
			return errors.Join(translation.ErrInterrupted, outcome.Err)
		}
		return translation.ErrInterrupted

	default:
		out.fail("Chunk %d of %d failed: %v", outcome.FailedIndex+1, outcome.Total, outcome.Err)
		reportSaved(out, outcome, j)
		printHints(out, outcome.Err, j.cfg)
		return outcome.Err
	}
}

func reportSaved(out *console, outcome translation.Outcome, j *job) {
	if outcome.Saved {
		out.info("Partial translation (%d of %d chunks) saved to %s", outcome.Completed, outcome.Total, j.outputPath)
	} else {
		out.info("No chunks were completed, nothing was written")
	}
	if j.cfg.Checkpoint && outcome.Completed > 0 {
		out.hint("Run again with --resume to continue from chunk %d", outcome.Completed+1)
	}
}

// printHints 针对常见失败给出处理建议
func printHints(out *console, err error, cfg config.Config) {
	switch {
	case errors.Is(err, providers.ErrConnection):
		out.hint("Is the model service running at %s? Start it with: ollama serve", cfg.APIBase)
	case errors.Is(err, providers.ErrTimeout):
		out.hint("The model did not answer within %ds; try a smaller --chunk-size or a larger --timeout", cfg.RequestTimeout)
	case errors.Is(err, providers.ErrModel):
		if strings.EqualFold(cfg.APIType, factory.TypeOllama) {
			out.hint("Make sure the model is available: ollama pull %s", cfg.ModelName)
		}
	}
}
