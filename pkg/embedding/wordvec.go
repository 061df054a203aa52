package embedding

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"wikisearch/pkg/log"
)

// WordVectors 是只读的词向量表，所有向量连续存放在同一个切片中。
type WordVectors struct {
	dim   int
	index map[string]int
	data  []float32
}

// NewWordVectors 从内存中的映射构建词向量表，所有向量长度必须等于 dim。
func NewWordVectors(dim int, vectors map[string][]float32) (*WordVectors, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("embedding: invalid dimension %d", dim)
	}
	wv := &WordVectors{
		dim:   dim,
		index: make(map[string]int, len(vectors)),
		data:  make([]float32, 0, len(vectors)*dim),
	}
	for token, vec := range vectors {
		if len(vec) != dim {
			return nil, fmt.Errorf("embedding: vector for %q has %d components, want %d", token, len(vec), dim)
		}
		wv.add(token, vec)
	}
	return wv, nil
}

func (wv *WordVectors) add(token string, vec []float32) {
	wv.index[token] = len(wv.data) / wv.dim
	wv.data = append(wv.data, vec...)
}

// Dimensions 返回向量维度。
func (wv *WordVectors) Dimensions() int { return wv.dim }

// Len 返回词表大小。
func (wv *WordVectors) Len() int { return len(wv.index) }

// Lookup 返回 token 对应的向量。返回的切片与表共享内存，调用方不能修改。
func (wv *WordVectors) Lookup(token string) ([]float32, bool) {
	i, ok := wv.index[token]
	if !ok {
		return nil, false
	}
	return wv.data[i*wv.dim : (i+1)*wv.dim], true
}

// LoadWordVectors 读取 word2vec 文本格式的词向量文件。
func LoadWordVectors(path string) (*WordVectors, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("打开词向量文件失败: %w", err)
	}
	defer f.Close()

	wv, err := ReadWordVectors(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	log.Infof("[WordVectors] 词向量加载完成, path: %s, 词数: %d, 维度: %d", path, wv.Len(), wv.Dimensions())
	return wv, nil
}

const (
	maxPreallocTokens = 1 << 20
	maxPreallocFloats = 1 << 24
)

// ReadWordVectors 解析 word2vec 文本格式：可选的首行 "<词数> <维度>"，
// 之后每行是 "token f1 ... fN"。重复的 token 保留第一次出现的向量。
func ReadWordVectors(r io.Reader) (*WordVectors, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)

	var wv *WordVectors
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		if lineNo == 1 && len(fields) == 2 {
			count, errCount := strconv.Atoi(fields[0])
			dim, errDim := strconv.Atoi(fields[1])
			if errCount == nil && errDim == nil {
				if count < 0 {
					return nil, fmt.Errorf("line 1: invalid count %d", count)
				}
				if dim <= 0 {
					return nil, fmt.Errorf("line 1: invalid dimension %d", dim)
				}
				// 首行的词数只作为预分配提示，不完全信任
				hint := min(count, maxPreallocTokens)
				wv = &WordVectors{
					dim:   dim,
					index: make(map[string]int, hint),
					data:  make([]float32, 0, min(hint, maxPreallocFloats/dim)*dim),
				}
				continue
			}
		}

		if wv == nil {
			wv = &WordVectors{dim: len(fields) - 1, index: make(map[string]int)}
			if wv.dim <= 0 {
				return nil, fmt.Errorf("line %d: no vector components", lineNo)
			}
		}
		if len(fields)-1 != wv.dim {
			return nil, fmt.Errorf("line %d: got %d components, want %d", lineNo, len(fields)-1, wv.dim)
		}

		token := fields[0]
		if _, dup := wv.index[token]; dup {
			continue
		}
		vec := make([]float32, wv.dim)
		for i, s := range fields[1:] {
			v, err := strconv.ParseFloat(s, 32)
			if err != nil {
				return nil, fmt.Errorf("line %d: component %d: %w", lineNo, i, err)
			}
			vec[i] = float32(v)
		}
		wv.add(token, vec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("读取词向量失败: %w", err)
	}
	if wv == nil || wv.Len() == 0 {
		return nil, fmt.Errorf("no word vectors found")
	}
	return wv, nil
}
