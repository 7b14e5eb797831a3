package translation

import (
	"fmt"
	"sort"
	"strings"
)

// ChunkSeparator 拼接译文时相邻分块之间的分隔符
const ChunkSeparator = "\n"

// Result 单个分块的翻译结果：译文或失败
type Result struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
	Err   error  `json:"-"`
}

// Done 是否翻译成功
func (r Result) Done() bool {
	return r.Err == nil
}

// Assemble 按分块序号拼接译文。
// 结果必须覆盖从 0 开始的连续序号且全部成功，否则返回 ErrResultGap。
// 重叠区域不做去重，重叠部分的译文会在拼接结果中出现两次。
func Assemble(results []Result) (string, error) {
	if len(results) == 0 {
		return "", nil
	}

	sorted := make([]Result, len(results))
	copy(sorted, results)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Index < sorted[j].Index
	})

	texts := make([]string, 0, len(sorted))
	for pos, r := range sorted {
		if r.Index != pos {
			return "", fmt.Errorf("%w: expected chunk %d, got %d", ErrResultGap, pos, r.Index)
		}
		if !r.Done() {
			return "", fmt.Errorf("%w: chunk %d has no translation: %v", ErrResultGap, r.Index, r.Err)
		}
		texts = append(texts, r.Text)
	}

	return strings.Join(texts, ChunkSeparator), nil
}
