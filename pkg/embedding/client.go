// Package embedding 将文本转换为定长向量：分词后对预训练词向量取平均 (SWEM)。
package embedding

import (
	"context"
	"errors"
	"fmt"
)

// ErrNoKnownTokens 表示文本中没有任何一个词出现在词向量表里，无法求平均。
var ErrNoKnownTokens = errors.New("embedding: no known tokens in text")

// ErrZeroVector 表示已知词的向量平均后为零向量，余弦相似度无法计算。
// 它包装了 ErrNoKnownTokens，调用方按同样的方式处理。
var ErrZeroVector = fmt.Errorf("embedding: known token vectors average to zero: %w", ErrNoKnownTokens)

// Client defines the interface for an embedding client.
type Client interface {
	CreateEmbedding(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
}

// Tokenizer 把原始文本切分成词。
type Tokenizer interface {
	Tokenize(text string) []string
}

// TokenizerFunc 让普通函数实现 Tokenizer。
type TokenizerFunc func(text string) []string

// Tokenize calls f(text).
func (f TokenizerFunc) Tokenize(text string) []string { return f(text) }
