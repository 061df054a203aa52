// Package estest 提供一个内存中的 Elasticsearch 替身，用于测试索引、bulk 和 script_score 检索。
// 只实现本项目用到的 API 子集。
package estest

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"regexp"
	"sort"
	"strings"
	"sync"
	"testing"
)

var cosineScript = regexp.MustCompile(`cosineSimilarity\(params\.(\w+),\s*'([^']+)'\)\s*\+\s*([0-9.]+)`)

type document struct {
	id     string
	source map[string]interface{}
}

type index struct {
	definition map[string]interface{}
	docs       []document
	bulkSizes  []int
}

// Server 是一个 httptest.Server，按 Elasticsearch 的 REST 约定响应请求。
type Server struct {
	*httptest.Server

	mu      sync.Mutex
	indices map[string]*index
	created map[string]int
	deleted map[string]int
	nextID  int
}

// NewServer 启动替身服务，测试结束时自动关闭。
func NewServer(t testing.TB) *Server {
	t.Helper()
	s := &Server{
		indices: make(map[string]*index),
		created: make(map[string]int),
		deleted: make(map[string]int),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.Close)
	return s
}

// Indices 返回当前存在的索引名，按字典序排列。
func (s *Server) Indices() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.indices))
	for name := range s.indices {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// BulkSizes 返回每次写入 name 的 bulk 请求中的文档数。
func (s *Server) BulkSizes(name string) []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if idx, ok := s.indices[name]; ok {
		return append([]int(nil), idx.bulkSizes...)
	}
	return nil
}

// DocCount 返回索引中的文档数。
func (s *Server) DocCount(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if idx, ok := s.indices[name]; ok {
		return len(idx.docs)
	}
	return 0
}

// Docs 返回索引中所有文档的 _source。
func (s *Server) Docs(name string) []map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, ok := s.indices[name]
	if !ok {
		return nil
	}
	out := make([]map[string]interface{}, len(idx.docs))
	for i, d := range idx.docs {
		out[i] = d.source
	}
	return out
}

// Definition 返回创建索引时提交的请求体。
func (s *Server) Definition(name string) map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	if idx, ok := s.indices[name]; ok {
		return idx.definition
	}
	return nil
}

// CreateCount 和 DeleteCount 返回索引被创建、删除的次数。
func (s *Server) CreateCount(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.created[name]
}

func (s *Server) DeleteCount(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleted[name]
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("X-Elastic-Product", "Elasticsearch")

	s.mu.Lock()
	defer s.mu.Unlock()

	segs := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	switch {
	case segs[0] == "":
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"version": map[string]interface{}{"number": "8.19.0"},
			"tagline": "You Know, for Search",
		})
	case segs[0] == "_cat" && len(segs) > 1 && segs[1] == "indices":
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		for _, name := range sortedKeys(s.indices) {
			fmt.Fprintln(w, name)
		}
	case segs[0] == "_bulk":
		s.bulk(w, r, "")
	case segs[0] == "_mapping":
		s.mapping(w, sortedKeys(s.indices))
	case segs[0] == "_refresh":
		writeJSON(w, http.StatusOK, map[string]interface{}{"_shards": map[string]int{"failed": 0}})
	case len(segs) == 1:
		s.indexOp(w, r, segs[0])
	case segs[1] == "_bulk":
		s.bulk(w, r, segs[0])
	case segs[1] == "_search":
		s.search(w, r, segs[0])
	case segs[1] == "_mapping":
		if _, ok := s.indices[segs[0]]; !ok {
			writeError(w, http.StatusNotFound, "index_not_found_exception", "no such index ["+segs[0]+"]")
			return
		}
		s.mapping(w, []string{segs[0]})
	case segs[1] == "_refresh":
		if _, ok := s.indices[segs[0]]; !ok {
			writeError(w, http.StatusNotFound, "index_not_found_exception", "no such index ["+segs[0]+"]")
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"_shards": map[string]int{"failed": 0}})
	default:
		writeError(w, http.StatusBadRequest, "illegal_argument_exception", "unsupported path "+r.URL.Path)
	}
}

func (s *Server) indexOp(w http.ResponseWriter, r *http.Request, name string) {
	_, exists := s.indices[name]
	switch r.Method {
	case http.MethodHead:
		if exists {
			w.WriteHeader(http.StatusOK)
		} else {
			w.WriteHeader(http.StatusNotFound)
		}
	case http.MethodPut:
		if exists {
			writeError(w, http.StatusBadRequest, "resource_already_exists_exception", "index ["+name+"] already exists")
			return
		}
		def := map[string]interface{}{}
		body, _ := io.ReadAll(r.Body)
		if len(bytes.TrimSpace(body)) > 0 {
			if err := json.Unmarshal(body, &def); err != nil {
				writeError(w, http.StatusBadRequest, "parse_exception", err.Error())
				return
			}
		}
		s.indices[name] = &index{definition: def}
		s.created[name]++
		writeJSON(w, http.StatusOK, map[string]interface{}{"acknowledged": true, "index": name})
	case http.MethodDelete:
		if !exists {
			writeError(w, http.StatusNotFound, "index_not_found_exception", "no such index ["+name+"]")
			return
		}
		delete(s.indices, name)
		s.deleted[name]++
		writeJSON(w, http.StatusOK, map[string]interface{}{"acknowledged": true})
	default:
		writeError(w, http.StatusMethodNotAllowed, "illegal_argument_exception", r.Method)
	}
}

func (s *Server) mapping(w http.ResponseWriter, names []string) {
	out := map[string]interface{}{}
	for _, name := range names {
		mappings, _ := s.indices[name].definition["mappings"].(map[string]interface{})
		if mappings == nil {
			mappings = map[string]interface{}{}
		}
		out[name] = map[string]interface{}{"mappings": mappings}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) bulk(w http.ResponseWriter, r *http.Request, defaultIndex string) {
	scanner := bufio.NewScanner(r.Body)
	scanner.Buffer(make([]byte, 64*1024), 64*1024*1024)

	var items []map[string]interface{}
	hasErrors := false
	counted := map[string]int{}
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var action map[string]map[string]interface{}
		if err := json.Unmarshal(line, &action); err != nil {
			writeError(w, http.StatusBadRequest, "parse_exception", err.Error())
			return
		}
		var op string
		var meta map[string]interface{}
		for k, v := range action {
			op, meta = k, v
		}
		if !scanner.Scan() {
			writeError(w, http.StatusBadRequest, "parse_exception", "missing document after action")
			return
		}
		var source map[string]interface{}
		if err := json.Unmarshal(scanner.Bytes(), &source); err != nil {
			writeError(w, http.StatusBadRequest, "parse_exception", err.Error())
			return
		}

		name := defaultIndex
		if v, ok := meta["_index"].(string); ok && v != "" {
			name = v
		}
		idx, ok := s.indices[name]
		if !ok {
			idx = &index{definition: map[string]interface{}{}}
			s.indices[name] = idx
		}
		id, _ := meta["_id"].(string)
		if id == "" {
			s.nextID++
			id = fmt.Sprintf("doc-%d", s.nextID)
		}
		counted[name]++

		if reason := checkVectors(idx.definition, source); reason != "" {
			hasErrors = true
			items = append(items, map[string]interface{}{op: map[string]interface{}{
				"_index": name, "_id": id, "status": http.StatusBadRequest,
				"error": map[string]interface{}{"type": "document_parsing_exception", "reason": reason},
			}})
			continue
		}
		idx.docs = append(idx.docs, document{id: id, source: source})
		items = append(items, map[string]interface{}{op: map[string]interface{}{
			"_index": name, "_id": id, "status": http.StatusCreated, "result": "created",
		}})
	}
	for name, n := range counted {
		s.indices[name].bulkSizes = append(s.indices[name].bulkSizes, n)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"took": 1, "errors": hasErrors, "items": items})
}

// checkVectors 校验 dense_vector 字段的维度，返回空字符串表示通过。
func checkVectors(def, source map[string]interface{}) string {
	mappings, _ := def["mappings"].(map[string]interface{})
	props, _ := mappings["properties"].(map[string]interface{})
	for field, p := range props {
		prop, _ := p.(map[string]interface{})
		if prop["type"] != "dense_vector" {
			continue
		}
		dims, _ := prop["dims"].(float64)
		raw, ok := source[field]
		if !ok {
			continue
		}
		vec, ok := raw.([]interface{})
		if !ok || len(vec) != int(dims) {
			return fmt.Sprintf("The [dense_vector] field [%s] has a different number of dimensions [%d] than defined in the mapping [%d]",
				field, len(vec), int(dims))
		}
	}
	return ""
}

type searchRequest struct {
	Size  *int `json:"size"`
	Query struct {
		ScriptScore *struct {
			Script struct {
				Source string               `json:"source"`
				Params map[string][]float64 `json:"params"`
			} `json:"script"`
		} `json:"script_score"`
	} `json:"query"`
	Source *struct {
		Includes []string `json:"includes"`
	} `json:"_source"`
}

func (s *Server) search(w http.ResponseWriter, r *http.Request, name string) {
	idx, ok := s.indices[name]
	if !ok {
		writeError(w, http.StatusNotFound, "index_not_found_exception", "no such index ["+name+"]")
		return
	}
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		writeError(w, http.StatusBadRequest, "parse_exception", err.Error())
		return
	}
	size := 10
	if req.Size != nil {
		size = *req.Size
	}

	type scored struct {
		doc   document
		score float64
	}
	var matched []scored
	for _, d := range idx.docs {
		if req.Query.ScriptScore == nil {
			matched = append(matched, scored{doc: d, score: 1})
			continue
		}
		m := cosineScript.FindStringSubmatch(req.Query.ScriptScore.Script.Source)
		if m == nil {
			writeError(w, http.StatusBadRequest, "script_exception", "unsupported script")
			return
		}
		query := req.Query.ScriptScore.Script.Params[m[1]]
		var offset float64
		fmt.Sscanf(m[3], "%g", &offset)
		vec, ok := d.source[m[2]].([]interface{})
		if !ok {
			continue
		}
		sim, ok := cosine(query, vec)
		if !ok {
			continue
		}
		matched = append(matched, scored{doc: d, score: sim + offset})
	}
	sort.SliceStable(matched, func(i, j int) bool { return matched[i].score > matched[j].score })

	hits := []map[string]interface{}{}
	for i := 0; i < len(matched) && i < size; i++ {
		src := matched[i].doc.source
		if req.Source != nil && len(req.Source.Includes) > 0 {
			filtered := map[string]interface{}{}
			for _, f := range req.Source.Includes {
				if v, ok := src[f]; ok {
					filtered[f] = v
				}
			}
			src = filtered
		}
		hits = append(hits, map[string]interface{}{
			"_index": name, "_id": matched[i].doc.id, "_score": matched[i].score, "_source": src,
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"took": 1, "timed_out": false,
		"hits": map[string]interface{}{
			"total": map[string]interface{}{"value": len(matched), "relation": "eq"},
			"hits":  hits,
		},
	})
}

func cosine(a []float64, b []interface{}) (float64, bool) {
	if len(a) != len(b) || len(a) == 0 {
		return 0, false
	}
	var dot, na, nb float64
	for i := range a {
		bv, _ := b[i].(float64)
		dot += a[i] * bv
		na += a[i] * a[i]
		nb += bv * bv
	}
	if na == 0 || nb == 0 {
		return 0, false
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb)), true
}

func sortedKeys(m map[string]*index) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, typ, reason string) {
	writeJSON(w, status, map[string]interface{}{
		"error":  map[string]interface{}{"type": typ, "reason": reason},
		"status": status,
	})
}
