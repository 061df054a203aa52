// Package corpus 流式读取 CirrusSearch 格式的 Wikipedia 语料（gzip 压缩的 NDJSON）。
package corpus

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"wikisearch/internal/model"
)

// headerKey 标记 bulk action 头行，例如 {"index":{"_type":"page","_id":"1"}}。
const headerKey = "index"

// Reader 逐行解码文章，跳过 bulk action 头行。
type Reader struct {
	r      *bufio.Reader
	closer io.Closer
	line   int
}

// NewReader 创建 Reader。输入以 gzip 魔数开头时自动解压，否则按明文 NDJSON 读取。
func NewReader(src io.Reader) (*Reader, error) {
	br := bufio.NewReaderSize(src, 1<<20)
	magic, err := br.Peek(2)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("读取语料失败: %w", err)
	}
	if len(magic) == 2 && magic[0] == 0x1f && magic[1] == 0x8b {
		gz, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("打开 gzip 语料失败: %w", err)
		}
		return &Reader{r: bufio.NewReaderSize(gz, 1<<20), closer: gz}, nil
	}
	return &Reader{r: br}, nil
}

// Line 返回最近读取的行号（从 1 开始）。
func (r *Reader) Line() int { return r.line }

// Next 返回下一篇文章，读完时返回 io.EOF。格式错误的行会返回带行号的错误。
func (r *Reader) Next() (model.WikiDocument, error) {
	for {
		raw, err := r.r.ReadBytes('\n')
		if len(raw) == 0 && err != nil {
			if errors.Is(err, io.EOF) {
				return model.WikiDocument{}, io.EOF
			}
			return model.WikiDocument{}, fmt.Errorf("line %d: %w", r.line+1, err)
		}
		r.line++

		raw = bytes.TrimSpace(raw)
		if len(raw) == 0 {
			continue
		}

		var fields map[string]json.RawMessage
		if jerr := json.Unmarshal(raw, &fields); jerr != nil {
			return model.WikiDocument{}, fmt.Errorf("line %d: malformed json: %w", r.line, jerr)
		}
		if _, isHeader := fields[headerKey]; isHeader {
			continue
		}

		var doc model.WikiDocument
		if jerr := json.Unmarshal(raw, &doc); jerr != nil {
			return model.WikiDocument{}, fmt.Errorf("line %d: malformed document: %w", r.line, jerr)
		}
		return doc, nil
	}
}

// Close 释放 gzip 解压器。底层输入由调用方关闭。
func (r *Reader) Close() error {
	if r.closer != nil {
		return r.closer.Close()
	}
	return nil
}
