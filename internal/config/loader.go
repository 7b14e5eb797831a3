package config

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/spf13/cast"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix 环境变量前缀
const EnvPrefix = "GEMMA"

// DefaultConfigName 默认配置文件名，位于用户主目录
const DefaultConfigName = ".gemma-translator.yaml"

// DefaultConfigPath 返回 ~/.gemma-translator.yaml
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return DefaultConfigName
	}
	return filepath.Join(home, DefaultConfigName)
}

// LoadFile 读取 YAML 配置文件。
// 文件不存在时返回空来源；explicit 为 true（用户通过 --config 指定）时不存在也是错误。
func LoadFile(path string, explicit bool) (Partial, error) {
	if path == "" {
		return Partial{}, nil
	}

	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) && !explicit {
			return Partial{}, nil
		}
		return Partial{}, configError("cannot read config file %s: %v", path, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return Partial{}, configError("invalid config file %s: %v", path, err)
	}
	return fromViper(v, "config file "+path)
}

// LoadEnv 读取 GEMMA_ 前缀的环境变量
func LoadEnv() (Partial, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	for _, key := range Keys {
		if err := v.BindEnv(key); err != nil {
			return Partial{}, configError("cannot bind env for %s: %v", key, err)
		}
	}
	return fromViper(v, "environment")
}

// FlagKeys 命令行参数名到配置键的映射
var FlagKeys = map[string]string{
	"model":         KeyModelName,
	"api-base":      KeyAPIBase,
	"api-type":      KeyAPIType,
	"source-lang":   KeySourceLang,
	"source-code":   KeySourceCode,
	"target-lang":   KeyTargetLang,
	"target-code":   KeyTargetCode,
	"chunk-size":    KeyChunkSize,
	"chunk-overlap": KeyChunkOverlap,
	"timeout":       KeyRequestTimeout,
	"max-retries":   KeyMaxRetries,
	"temperature":   KeyTemperature,
	"max-tokens":    KeyMaxTokens,
	"system-prompt": KeySystemPrompt,
	"log-level":     KeyLogLevel,
}

// FromFlags 只收集用户显式设置过的命令行参数
func FromFlags(fs *pflag.FlagSet) (Partial, error) {
	v := viper.New()
	for name, key := range FlagKeys {
		flag := fs.Lookup(name)
		if flag == nil || !flag.Changed {
			continue
		}
		v.Set(key, flag.Value.String())
	}

	if flag := fs.Lookup("no-checkpoint"); flag != nil && flag.Changed {
		disabled, err := cast.ToBoolE(flag.Value.String())
		if err != nil {
			return Partial{}, configError("invalid --no-checkpoint value: %v", err)
		}
		v.Set(KeyCheckpoint, !disabled)
	}

	return fromViper(v, "command line")
}

// Load 按 CLI > 配置文件 > 环境变量 > 默认值 解析并校验配置
func Load(configPath string, explicit bool, fs *pflag.FlagSet) (Config, error) {
	env, err := LoadEnv()
	if err != nil {
		return Config{}, err
	}
	file, err := LoadFile(configPath, explicit)
	if err != nil {
		return Config{}, err
	}
	cli := Partial{}
	if fs != nil {
		if cli, err = FromFlags(fs); err != nil {
			return Config{}, err
		}
	}

	cfg := Resolve(Defaults(), env, file, cli)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// fromViper 将 viper 中已设置的键转换为 Partial
func fromViper(v *viper.Viper, source string) (Partial, error) {
	var p Partial
	var err error

	str := func(key string) *string {
		if err != nil || !v.IsSet(key) {
			return nil
		}
		s, e := cast.ToStringE(v.Get(key))
		if e != nil {
			err = configError("%s: %s: %v", source, key, e)
			return nil
		}
		return &s
	}
	integer := func(key string) *int {
		if err != nil || !v.IsSet(key) {
			return nil
		}
		n, e := cast.ToIntE(v.Get(key))
		if e != nil {
			err = configError("%s: %s must be an integer: %v", source, key, e)
			return nil
		}
		return &n
	}
	float := func(key string) *float64 {
		if err != nil || !v.IsSet(key) {
			return nil
		}
		f, e := cast.ToFloat64E(v.Get(key))
		if e != nil {
			err = configError("%s: %s must be a number: %v", source, key, e)
			return nil
		}
		return &f
	}
	boolean := func(key string) *bool {
		if err != nil || !v.IsSet(key) {
			return nil
		}
		b, e := cast.ToBoolE(v.Get(key))
		if e != nil {
			err = configError("%s: %s must be a boolean: %v", source, key, e)
			return nil
		}
		return &b
	}

	p.ModelName = str(KeyModelName)
	p.APIBase = str(KeyAPIBase)
	p.APIType = str(KeyAPIType)
	p.APIKey = str(KeyAPIKey)
	p.SourceLang = str(KeySourceLang)
	p.SourceCode = str(KeySourceCode)
	p.TargetLang = str(KeyTargetLang)
	p.TargetCode = str(KeyTargetCode)
	p.ChunkSize = integer(KeyChunkSize)
	p.ChunkOverlap = integer(KeyChunkOverlap)
	p.RequestTimeout = integer(KeyRequestTimeout)
	p.MaxRetries = integer(KeyMaxRetries)
	p.Temperature = float(KeyTemperature)
	p.MaxTokens = integer(KeyMaxTokens)
	p.SystemPrompt = str(KeySystemPrompt)
	p.LogLevel = str(KeyLogLevel)
	p.Checkpoint = boolean(KeyCheckpoint)

	if err != nil {
		return Partial{}, err
	}
	return p, nil
}
