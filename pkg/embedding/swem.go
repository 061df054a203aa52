package embedding

import (
	"context"
)

// SWEM 通过对文本中各词的预训练向量取算术平均得到句向量。
// 词表外的词直接忽略；没有任何已知词时返回 ErrNoKnownTokens，平均结果为零向量时返回 ErrZeroVector。
type SWEM struct {
	vectors   *WordVectors
	tokenizer Tokenizer
}

// NewSWEM 创建一个新的 SWEM 实例。
func NewSWEM(vectors *WordVectors, tokenizer Tokenizer) *SWEM {
	return &SWEM{vectors: vectors, tokenizer: tokenizer}
}

// Dimensions 返回输出向量的维度，等于词向量表的维度。
func (s *SWEM) Dimensions() int { return s.vectors.Dimensions() }

// CreateEmbedding 对 text 做 average pooling。
func (s *SWEM) CreateEmbedding(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dim := s.vectors.Dimensions()
	sum := make([]float64, dim)
	known := 0
	for _, token := range s.tokenizer.Tokenize(text) {
		vec, ok := s.vectors.Lookup(token)
		if !ok {
			continue
		}
		for i, v := range vec {
			sum[i] += float64(v)
		}
		known++
	}
	if known == 0 {
		return nil, ErrNoKnownTokens
	}

	out := make([]float32, dim)
	zero := true
	for i := range sum {
		out[i] = float32(sum[i] / float64(known))
		if out[i] != 0 {
			zero = false
		}
	}
	if zero {
		return nil, ErrZeroVector
	}
	return out, nil
}
