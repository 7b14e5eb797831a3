package translation

import (
	"fmt"
	"strings"
	"text/template"
)

// TranslateGemma 要求译文指令与原文之间恰好空两行
const translationPromptTemplate = `You are a professional {{.SourceLang}} ({{.SourceCode}}) to {{.TargetLang}} ({{.TargetCode}}) translator. Your goal is to accurately convey the meaning and nuances of the original {{.SourceLang}} text while adhering to {{.TargetLang}} grammar, vocabulary, and cultural sensitivities.
Produce only the {{.TargetLang}} translation, without any additional explanations or commentary. Please translate the following {{.SourceLang}} text into {{.TargetLang}}:


{{.Text}}`

var translationPrompt = template.Must(template.New("translation").Parse(translationPromptTemplate))

// LanguagePair 源语言与目标语言
type LanguagePair struct {
	SourceLang string `json:"source_lang"`
	SourceCode string `json:"source_code"`
	TargetLang string `json:"target_lang"`
	TargetCode string `json:"target_code"`
}

// String 返回 "English (en) → Spanish (es)" 形式
func (l LanguagePair) String() string {
	return fmt.Sprintf("%s (%s) → %s (%s)", l.SourceLang, l.SourceCode, l.TargetLang, l.TargetCode)
}

// PromptData 提示词模板参数
type PromptData struct {
	LanguagePair
	Text string
}

// BuildPrompt 渲染单个分块的翻译提示词
func BuildPrompt(data PromptData) (string, error) {
	var b strings.Builder
	if err := translationPrompt.Execute(&b, data); err != nil {
		return "", fmt.Errorf("failed to render prompt: %w", err)
	}
	return b.String(), nil
}
