package document

import (
	"fmt"
	"os"
	"path/filepath"
)

// FileSink 将（部分）译文写到固定路径，每次写入都整体覆盖
type FileSink struct {
	Path string
}

// NewFileSink 创建文件输出
func NewFileSink(path string) *FileSink {
	return &FileSink{Path: path}
}

// Write 原子覆盖输出文件
func (s *FileSink) Write(text string) error {
	return WriteFileAtomic(s.Path, []byte(text), 0o644)
}

// WriteFileAtomic 先写同目录临时文件再重命名，读者不会看到写了一半的文件
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		return fmt.Errorf("failed to set permissions on %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}
