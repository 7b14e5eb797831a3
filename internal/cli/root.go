package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/nerdneilsfield/gemma-translator/internal/config"
	"github.com/nerdneilsfield/gemma-translator/internal/logger"
	"github.com/nerdneilsfield/gemma-translator/pkg/translation"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// 退出码
const (
	ExitOK          = 0
	ExitError       = 1
	ExitInterrupted = 130
)

// options 不属于配置文件的命令行标志
type options struct {
	configFile string
	output     string
	dryRun     bool
	resume     bool
	showConfig bool
	debug      bool
}

// NewRootCommand 创建根命令
func NewRootCommand(version, commit, buildDate string) *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:   "gemma-translator [flags] input_file",
		Short: "Translate large plain-text documents with a local TranslateGemma model",
		Long: `gemma-translator splits a plain-text document into chunks at paragraph and
sentence boundaries, translates each chunk in order through a local model
service (Ollama by default) and writes the reassembled translation.

If the run is interrupted or a chunk fails, every chunk translated so far is
saved to the output file, and --resume continues from where it stopped.

Configuration precedence: flags > config file (~/.gemma-translator.yaml) >
GEMMA_* environment variables > defaults.`,
		Version:       fmt.Sprintf("%s (commit %s, built %s)", version, commit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
		Args: func(cmd *cobra.Command, args []string) error {
			if opts.showConfig {
				return cobra.MaximumNArgs(1)(cmd, args)
			}
			return cobra.ExactArgs(1)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts, args)
		},
	}

	addFlags(rootCmd, opts)
	return rootCmd
}

// addFlags 添加命令行标志，默认值来自配置默认值
func addFlags(cmd *cobra.Command, opts *options) {
	d := config.Defaults()
	flags := cmd.Flags()

	flags.StringVarP(&opts.configFile, "config", "c", "", "config file (default ~/"+config.DefaultConfigName+")")
	flags.StringVarP(&opts.output, "output", "o", "", "output file (default <input>_<target_code><ext>)")
	flags.BoolVar(&opts.dryRun, "dry-run", false, "show the chunk plan without calling the model")
	flags.BoolVar(&opts.resume, "resume", false, "continue from the checkpoint of a previous interrupted run")
	flags.BoolVar(&opts.showConfig, "show-config", false, "print the resolved configuration and exit")
	flags.BoolVar(&opts.debug, "debug", false, "enable debug logging")

	flags.StringP("model", "m", d.ModelName, "model name")
	flags.String("api-base", d.APIBase, "model service base URL")
	flags.String("api-type", d.APIType, "model service API (ollama or openai)")
	flags.StringP("source-lang", "s", d.SourceLang, "source language name")
	flags.String("source-code", d.SourceCode, "source language code")
	flags.StringP("target-lang", "t", d.TargetLang, "target language name")
	flags.String("target-code", d.TargetCode, "target language code")
	flags.Int("chunk-size", d.ChunkSize, "maximum chunk size in characters")
	flags.Int("chunk-overlap", d.ChunkOverlap, "characters repeated from the previous chunk")
	flags.Int("timeout", d.RequestTimeout, "request timeout in seconds")
	flags.Int("max-retries", d.MaxRetries, "retries for connection failures and timeouts")
	flags.Float64("temperature", d.Temperature, "sampling temperature")
	flags.Int("max-tokens", d.MaxTokens, "maximum tokens generated per chunk (0 = model default)")
	flags.String("system-prompt", d.SystemPrompt, "extra system instructions for the model")
	flags.String("log-level", d.LogLevel, "log level (debug, info, warn, error)")
	flags.Bool("no-checkpoint", false, "do not write a resume checkpoint")
}

// run 命令主流程
func run(cmd *cobra.Command, opts *options, args []string) error {
	configPath, explicit := opts.configFile, opts.configFile != ""
	if !explicit {
		configPath = config.DefaultConfigPath()
	}

	cfg, err := config.Load(configPath, explicit, cmd.Flags())
	if err != nil {
		return err
	}

	if opts.showConfig {
		return printConfig(cmd.OutOrStdout(), cfg)
	}

	log, err := logger.NewLogger(cfg.LogLevel, opts.debug)
	if err != nil {
		return fmt.Errorf("%w: %v", translation.ErrConfig, err)
	}
	defer func() {
		_ = log.Sync()
	}()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	job, err := prepareJob(cfg, opts, args[0], log)
	if err != nil {
		return err
	}

	if opts.dryRun {
		printPlan(cmd.OutOrStdout(), job)
		return nil
	}

	return translateJob(ctx, cmd, job)
}

// printConfig 以 YAML 打印解析后的配置，API key 打码
func printConfig(out io.Writer, cfg config.Config) error {
	data, err := yaml.Marshal(cfg.Masked())
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	_, err = out.Write(data)
	return err
}

// ExitCode 将命令错误映射为进程退出码
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, translation.ErrInterrupted), errors.Is(err, context.Canceled):
		return ExitInterrupted
	default:
		return ExitError
	}
}

// Execute 运行根命令，打印错误并返回退出码
func Execute(ctx context.Context, version, commit, buildDate string) int {
	rootCmd := NewRootCommand(version, commit, buildDate)
	err := rootCmd.ExecuteContext(ctx)
	if err != nil && ExitCode(err) != ExitInterrupted {
		newConsole(rootCmd.ErrOrStderr()).fail("%v", err)
	}
	return ExitCode(err)
}

// healthCheckTimeout 启动前检查模型服务的超时
const healthCheckTimeout = 10 * time.Second
