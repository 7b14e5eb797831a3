package progress

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/nerdneilsfield/gemma-translator/pkg/document"
	"github.com/nerdneilsfield/gemma-translator/pkg/translation"
)

// CheckpointVersion 检查点文件格式版本
const CheckpointVersion = 1

// checkpointSuffix 检查点文件后缀，放在输出文件旁边
const checkpointSuffix = ".progress.json"

// Checkpoint 已完成分块的持久化快照
type Checkpoint struct {
	Version      int                  `json:"version"`
	SessionID    string               `json:"session_id"`
	InputPath    string               `json:"input_path"`
	InputSHA256  string               `json:"input_sha256"`
	ChunkSize    int                  `json:"chunk_size"`
	ChunkOverlap int                  `json:"chunk_overlap"`
	TotalChunks  int                  `json:"total_chunks"`
	SourceCode   string               `json:"source_code"`
	TargetCode   string               `json:"target_code"`
	Model        string               `json:"model"`
	UpdatedAt    time.Time            `json:"updated_at"`
	Translations []translation.Result `json:"translations"`
}

// Matches 检查点是否属于同一输入、分块参数和语言对
func (c *Checkpoint) Matches(other Checkpoint) bool {
	return c.Version == CheckpointVersion &&
		c.InputSHA256 == other.InputSHA256 &&
		c.ChunkSize == other.ChunkSize &&
		c.ChunkOverlap == other.ChunkOverlap &&
		c.TotalChunks == other.TotalChunks &&
		c.SourceCode == other.SourceCode &&
		c.TargetCode == other.TargetCode
}

// Results 返回已保存的结果
func (c *Checkpoint) Results() []translation.Result {
	out := make([]translation.Result, len(c.Translations))
	copy(out, c.Translations)
	return out
}

// CheckpointStore 基于 JSON 文件的检查点存储，实现 translation.Checkpointer
type CheckpointStore struct {
	path string
	meta Checkpoint
}

// NewCheckpointStore 创建检查点存储，meta 提供除结果外的所有字段
func NewCheckpointStore(path string, meta Checkpoint) *CheckpointStore {
	meta.Version = CheckpointVersion
	meta.Translations = nil
	return &CheckpointStore{path: path, meta: meta}
}

// PathFor 输出文件对应的检查点路径
func PathFor(outputPath string) string {
	return outputPath + checkpointSuffix
}

// HashText 计算输入文本的 SHA-256
func HashText(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// SetSessionID 更新写入检查点的会话 ID
func (s *CheckpointStore) SetSessionID(id string) {
	s.meta.SessionID = id
}

// Save 覆盖写入当前已完成的结果
func (s *CheckpointStore) Save(results []translation.Result) error {
	cp := s.meta
	cp.UpdatedAt = time.Now().UTC()
	cp.Translations = results

	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}
	return document.WriteFileAtomic(s.path, data, 0o644)
}

// Remove 删除检查点，文件不存在不算错误
func (s *CheckpointStore) Remove() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Load 读取检查点，文件不存在时返回 nil, nil
func Load(path string) (*Checkpoint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read checkpoint: %w", err)
	}

	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("invalid checkpoint %s: %w", path, err)
	}
	return &cp, nil
}
