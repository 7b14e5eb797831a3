package translation

import (
	"unicode"
)

// ChunkSpec 分块配置，长度单位均为字符（rune）
type ChunkSpec struct {
	Size    int `json:"chunk_size"`    // 每块最大字符数
	Overlap int `json:"chunk_overlap"` // 相邻块之间重复的字符数
}

// DefaultChunkSpec 返回默认分块配置
func DefaultChunkSpec() ChunkSpec {
	return ChunkSpec{
		Size:    1000,
		Overlap: 0,
	}
}

// Validate 检查 0 <= Overlap < Size
func (s ChunkSpec) Validate() error {
	if s.Size <= 0 {
		return configError("chunk_size must be positive, got %d", s.Size)
	}
	if s.Overlap < 0 {
		return configError("chunk_overlap cannot be negative, got %d", s.Overlap)
	}
	if s.Overlap >= s.Size {
		return configError("chunk_overlap %d must be smaller than chunk_size %d", s.Overlap, s.Size)
	}
	return nil
}

// Chunk 文档中的一个连续片段
type Chunk struct {
	Index int    `json:"index"`
	Start int    `json:"start"` // 起始字符偏移（包含）
	End   int    `json:"end"`   // 结束字符偏移（不包含）
	Text  string `json:"text"`
}

// Len 返回分块字符数
func (c Chunk) Len() int {
	return c.End - c.Start
}

// Chunker 文本分块器接口
type Chunker interface {
	// Split 将文本切分为有序的分块
	Split(text string) ([]Chunk, error)

	// GetSpec 获取分块配置
	GetSpec() ChunkSpec
}

// boundaryChunker 在自然语言边界处切分的分块器
type boundaryChunker struct {
	spec ChunkSpec
}

// NewChunker 创建分块器
func NewChunker(spec ChunkSpec) Chunker {
	return &boundaryChunker{spec: spec}
}

// Split 按 size/overlap 切分文本
func Split(text string, size, overlap int) ([]Chunk, error) {
	return NewChunker(ChunkSpec{Size: size, Overlap: overlap}).Split(text)
}

// GetSpec 获取分块配置
func (c *boundaryChunker) GetSpec() ChunkSpec {
	return c.spec
}

// Split 从偏移 0 开始扫描，每次在窗口 [cursor, cursor+Size] 内向后查找最佳边界。
// 下一块从 边界-Overlap 处开始；候选边界必须大于 cursor+Overlap，因此游标总是前进。
func (c *boundaryChunker) Split(text string) ([]Chunk, error) {
	if err := c.spec.Validate(); err != nil {
		return nil, err
	}
	if text == "" {
		return nil, ErrEmptyInput
	}

	runes := []rune(text)
	total := len(runes)

	var chunks []Chunk
	cursor := 0
	for {
		end := cursor + c.spec.Size
		if end >= total {
			chunks = append(chunks, newChunk(len(chunks), runes, cursor, total))
			return chunks, nil
		}

		cut := findBoundary(runes, cursor, cursor+c.spec.Overlap, end)
		chunks = append(chunks, newChunk(len(chunks), runes, cursor, cut))

		cursor = cut - c.spec.Overlap
	}
}

func newChunk(index int, runes []rune, start, end int) Chunk {
	return Chunk{
		Index: index,
		Start: start,
		End:   end,
		Text:  string(runes[start:end]),
	}
}

// separatorMatcher 若 i 处是分隔符，返回分隔符之后的位置，否则返回 -1
type separatorMatcher func(runes []rune, i int) int

// 按优先级排列：段落 > 句子 > 换行 > 空白
var boundaryPriority = []separatorMatcher{
	matchParagraph,
	matchSentence,
	matchNewline,
	matchWhitespace,
}

// findBoundary 在 (floor, end] 内查找切分位置，分隔符起点不早于 lo；找不到则在 end 处硬切
func findBoundary(runes []rune, lo, floor, end int) int {
	for _, match := range boundaryPriority {
		for i := end - 1; i >= lo; i-- {
			p := match(runes, i)
			if p < 0 || p > end {
				continue
			}
			if p <= floor {
				break
			}
			return p
		}
	}
	return end
}

func matchParagraph(runes []rune, i int) int {
	if runes[i] == '\n' && i+1 < len(runes) && runes[i+1] == '\n' {
		return i + 2
	}
	return -1
}

func matchSentence(runes []rune, i int) int {
	switch runes[i] {
	case '.', '!', '?':
		if i+1 < len(runes) && unicode.IsSpace(runes[i+1]) {
			return i + 2
		}
	case '。', '！', '？':
		return i + 1
	}
	return -1
}

func matchNewline(runes []rune, i int) int {
	if runes[i] == '\n' {
		return i + 1
	}
	return -1
}

func matchWhitespace(runes []rune, i int) int {
	if unicode.IsSpace(runes[i]) {
		return i + 1
	}
	return -1
}
