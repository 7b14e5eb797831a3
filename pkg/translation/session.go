package translation

import (
	"fmt"

	"github.com/google/uuid"
)

// ChunkState 分块状态
type ChunkState int

const (
	StatePending     ChunkState = iota // 尚未尝试
	StateInProgress                    // 请求已发出
	StateDone                          // 已收到译文
	StateFailed                        // 客户端返回失败
	StateInterrupted                   // 发出请求前观察到取消
)

// String 返回状态名称
func (s ChunkState) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateInProgress:
		return "in_progress"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	case StateInterrupted:
		return "interrupted"
	default:
		return fmt.Sprintf("ChunkState(%d)", int(s))
	}
}

// Sink 输出接收端，每次写入都覆盖之前的内容
type Sink interface {
	Write(text string) error
}

// Checkpointer 每完成一个分块后持久化已完成的结果
type Checkpointer interface {
	Save(results []Result) error
	Remove() error
}

// Session 一次翻译运行的状态：分块、每块状态、已完成结果（始终是连续前缀）和输出目标。
// 仅由 Driver 在单个 goroutine 中修改。
type Session struct {
	ID        string
	Chunks    []Chunk
	Languages LanguagePair

	states     []ChunkState
	results    []Result
	sink       Sink
	checkpoint Checkpointer
}

// SessionOption 会话选项
type SessionOption func(*Session)

// WithSessionID 指定会话 ID（恢复时沿用检查点中的 ID）
func WithSessionID(id string) SessionOption {
	return func(s *Session) {
		if id != "" {
			s.ID = id
		}
	}
}

// WithCheckpoint 设置检查点存储
func WithCheckpoint(cp Checkpointer) SessionOption {
	return func(s *Session) {
		s.checkpoint = cp
	}
}

// NewSession 创建翻译会话
func NewSession(chunks []Chunk, languages LanguagePair, sink Sink, opts ...SessionOption) *Session {
	s := &Session{
		ID:        uuid.NewString(),
		Chunks:    chunks,
		Languages: languages,
		states:    make([]ChunkState, len(chunks)),
		results:   make([]Result, 0, len(chunks)),
		sink:      sink,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Seed 用之前运行保存的结果填充会话，结果必须是从 0 开始的连续前缀
func (s *Session) Seed(results []Result) error {
	if len(s.results) > 0 {
		return fmt.Errorf("session %s already has %d results", s.ID, len(s.results))
	}
	if len(results) > len(s.Chunks) {
		return fmt.Errorf("%w: %d results for %d chunks", ErrResultGap, len(results), len(s.Chunks))
	}
	for pos, r := range results {
		if r.Index != pos || !r.Done() {
			return fmt.Errorf("%w: seed result at position %d has index %d", ErrResultGap, pos, r.Index)
		}
	}
	for _, r := range results {
		s.results = append(s.results, r)
		s.states[r.Index] = StateDone
	}
	return nil
}

// Total 分块总数
func (s *Session) Total() int {
	return len(s.Chunks)
}

// Completed 已完成的分块数
func (s *Session) Completed() int {
	return len(s.results)
}

// Next 下一个待翻译的分块序号
func (s *Session) Next() int {
	return len(s.results)
}

// State 返回分块状态
func (s *Session) State(index int) ChunkState {
	return s.states[index]
}

// States 返回所有分块状态的副本
func (s *Session) States() []ChunkState {
	out := make([]ChunkState, len(s.states))
	copy(out, s.states)
	return out
}

// Results 返回已完成结果的副本
func (s *Session) Results() []Result {
	out := make([]Result, len(s.results))
	copy(out, s.results)
	return out
}

func (s *Session) mark(index int, state ChunkState) {
	s.states[index] = state
}

// Record 追加一个完成的结果并保存检查点。
// 返回的错误只来自检查点，结果本身已经记录。
func (s *Session) Record(r Result) error {
	if r.Index != len(s.results) || r.Index >= len(s.Chunks) {
		return fmt.Errorf("%w: cannot record chunk %d after %d results", ErrResultGap, r.Index, len(s.results))
	}
	s.results = append(s.results, r)
	s.states[r.Index] = StateDone

	if s.checkpoint == nil {
		return nil
	}
	if err := s.checkpoint.Save(s.results); err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}
	return nil
}

// Flush 将已完成前缀拼接后写入输出。没有完成任何分块时不写入，返回 false。
func (s *Session) Flush() (bool, error) {
	if len(s.results) == 0 {
		return false, nil
	}
	text, err := Assemble(s.results)
	if err != nil {
		return false, err
	}
	if err := s.sink.Write(text); err != nil {
		return false, fmt.Errorf("failed to write output: %w", err)
	}
	return true, nil
}

// finish 写出最终文档；完整完成后删除检查点
func (s *Session) finish(completed bool) (bool, error) {
	saved, err := s.Flush()
	if err != nil || !completed || s.checkpoint == nil {
		return saved, err
	}
	if err := s.checkpoint.Remove(); err != nil {
		return saved, fmt.Errorf("failed to remove checkpoint: %w", err)
	}
	return saved, nil
}
