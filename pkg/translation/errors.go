package translation

import (
	"errors"
	"fmt"
)

// 预定义错误
var (
	// ErrConfig 配置错误（分块参数、缺失配置项等），在分块开始前报告
	ErrConfig = errors.New("invalid configuration")

	// ErrEmptyInput 输入为空，不进行分块
	ErrEmptyInput = errors.New("empty input")

	// ErrResultGap 翻译结果不是从 0 开始的连续前缀
	ErrResultGap = errors.New("translation results are not a contiguous prefix")

	// ErrInterrupted 翻译被外部取消，已完成部分已保存
	ErrInterrupted = errors.New("translation interrupted")
)

// ChunkError 某个分块翻译失败
type ChunkError struct {
	Index int   // 从 0 开始的分块序号
	Total int   // 分块总数
	Err   error // 客户端返回的原始错误
}

// Error 实现error接口
func (e *ChunkError) Error() string {
	return fmt.Sprintf("chunk %d/%d failed: %v", e.Index+1, e.Total, e.Err)
}

// Unwrap 返回原因错误
func (e *ChunkError) Unwrap() error {
	return e.Err
}

// configError 包装为 ErrConfig
func configError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrConfig, fmt.Sprintf(format, args...))
}
