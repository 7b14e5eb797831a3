package document

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/nerdneilsfield/gemma-translator/pkg/translation"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/traditionalchinese"
	xunicode "golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// ReadText 读取纯文本文件并解码为 UTF-8。
// 只含空白的内容返回 translation.ErrEmptyInput。
func ReadText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read input: %w", err)
	}

	text, err := Decode(data)
	if err != nil {
		return "", fmt.Errorf("failed to decode %s: %w", path, err)
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%s: %w", path, translation.ErrEmptyInput)
	}
	return text, nil
}

// Decode 检测编码并转换为 UTF-8，统一换行符为 \n
func Decode(data []byte) (string, error) {
	text, err := detectAndConvertEncoding(data)
	if err != nil {
		return "", err
	}
	return NormalizeNewlines(text), nil
}

// NormalizeNewlines 将 CRLF 和 CR 转为 LF
func NormalizeNewlines(text string) string {
	if !strings.ContainsRune(text, '\r') {
		return text
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.ReplaceAll(text, "\r", "\n")
}

// detectAndConvertEncoding 检测并转换文本编码
func detectAndConvertEncoding(data []byte) (string, error) {
	if len(data) == 0 {
		return "", nil
	}

	// UTF-8 BOM
	if bytes.HasPrefix(data, []byte{0xEF, 0xBB, 0xBF}) {
		data = data[3:]
	}

	// UTF-16 BOM
	if len(data) >= 2 {
		var dec *encoding.Decoder
		switch {
		case data[0] == 0xFF && data[1] == 0xFE:
			dec = xunicode.UTF16(xunicode.LittleEndian, xunicode.IgnoreBOM).NewDecoder()
		case data[0] == 0xFE && data[1] == 0xFF:
			dec = xunicode.UTF16(xunicode.BigEndian, xunicode.IgnoreBOM).NewDecoder()
		}
		if dec != nil {
			res, err := io.ReadAll(transform.NewReader(bytes.NewReader(data[2:]), dec))
			if err != nil {
				return "", fmt.Errorf("invalid UTF-16 input: %w", err)
			}
			return string(res), nil
		}
	}

	if utf8.Valid(data) {
		return string(data), nil
	}

	// 尝试常见的本地编码
	encodings := []encoding.Encoding{
		simplifiedchinese.GB18030,
		traditionalchinese.Big5,
		japanese.ShiftJIS,
		japanese.EUCJP,
		korean.EUCKR,
		charmap.Windows1252,
	}
	for _, enc := range encodings {
		res, err := io.ReadAll(transform.NewReader(bytes.NewReader(data), enc.NewDecoder()))
		if err == nil && utf8.Valid(res) && isReasonableText(string(res)) {
			return string(res), nil
		}
	}

	return "", fmt.Errorf("unrecognised text encoding")
}

// isReasonableText 可打印字符超过 90% 才认为解码合理
func isReasonableText(text string) bool {
	if len(text) == 0 {
		return false
	}

	printable, total := 0, 0
	for _, r := range text {
		total++
		if r == utf8.RuneError {
			continue
		}
		if unicode.IsPrint(r) || unicode.IsSpace(r) {
			printable++
		}
	}
	return float64(printable)/float64(total) > 0.9
}
