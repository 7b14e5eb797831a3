package document

import (
	"path/filepath"
	"strings"
)

// OutputPath 生成默认输出路径 <dir>/<stem>_<targetCode><ext>
func OutputPath(inputPath, targetCode string) string {
	dir := filepath.Dir(inputPath)
	base := filepath.Base(inputPath)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	if stem == "" {
		// 以点开头且无扩展名的文件，例如 .notes
		stem, ext = base, ""
	}
	return filepath.Join(dir, stem+"_"+targetCode+ext)
}
