package embedding

import (
	"fmt"
	"strings"

	"github.com/ikawaha/kagome-dict/ipa"
	"github.com/ikawaha/kagome/v2/tokenizer"
)

// KagomeTokenizer 使用 kagome 和 IPA 词典做日语形态素分析，输出分かち書き的表层形。
type KagomeTokenizer struct {
	t *tokenizer.Tokenizer
}

// NewKagomeTokenizer 创建分词器。IPA 词典体积较大，进程内只需创建一次，可并发使用。
func NewKagomeTokenizer() (*KagomeTokenizer, error) {
	t, err := tokenizer.New(ipa.Dict(), tokenizer.OmitBosEos())
	if err != nil {
		return nil, fmt.Errorf("初始化 kagome 分词器失败: %w", err)
	}
	return &KagomeTokenizer{t: t}, nil
}

// Tokenize 返回 text 的表层形序列，丢弃只包含空白的词。
func (k *KagomeTokenizer) Tokenize(text string) []string {
	words := k.t.Wakati(text)
	out := words[:0]
	for _, w := range words {
		if strings.TrimSpace(w) == "" {
			continue
		}
		out = append(out, w)
	}
	return out
}
