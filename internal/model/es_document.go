// Package model 定义了语料文档、索引文档和检索结果的结构。
package model

// WikiDocument 是语料中的一篇文章，未知字段在解码时被忽略。
type WikiDocument struct {
	Title string `json:"title"`
	Text  string `json:"text"`
}

// EsDocument 定义了存储在 Elasticsearch 中的文档结构。
type EsDocument struct {
	Title      string    `json:"title"`
	Text       string    `json:"text"`
	TextVector []float32 `json:"text_vector"` // SWEM 句向量，维度必须与 mapping 中的 dims 一致
}

// SearchHit 是返回给终端或 HTTP 调用方的一条检索结果。
type SearchHit struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
	Title string  `json:"title"`
	Text  string  `json:"text"`
}

// BenchmarkDocument 是基准测试写入的随机向量文档。
type BenchmarkDocument struct {
	ID          int       `json:"id"`
	Title       string    `json:"title"`
	TitleVector []float32 `json:"title_vector"`
}
