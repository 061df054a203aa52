package es

import "fmt"

// VectorQuery 描述一次基于 script_score 的向量相似度检索。
type VectorQuery struct {
	Index string
	// Field 是 dense_vector 字段名，Param 是脚本中引用查询向量的参数名
	Field          string
	Param          string
	Vector         []float32
	Size           int
	SourceIncludes []string
}

// CosineScriptSource 返回 "cosineSimilarity(params.<param>, '<field>') + 1.0"。
// 加 1.0 是为了让得分非负，得分范围为 [0, 2]。
func CosineScriptSource(param, field string) string {
	return fmt.Sprintf("cosineSimilarity(params.%s, '%s') + 1.0", param, field)
}

// Body 构建 _search 请求体。
func (q VectorQuery) Body() map[string]interface{} {
	param := q.Param
	if param == "" {
		param = "query_vector"
	}
	body := map[string]interface{}{
		"query": map[string]interface{}{
			"script_score": map[string]interface{}{
				"query": map[string]interface{}{"match_all": map[string]interface{}{}},
				"script": map[string]interface{}{
					"source": CosineScriptSource(param, q.Field),
					"params": map[string]interface{}{param: q.Vector},
				},
			},
		},
	}
	if q.Size > 0 {
		body["size"] = q.Size
	}
	if len(q.SourceIncludes) > 0 {
		body["_source"] = map[string]interface{}{"includes": q.SourceIncludes}
	}
	return body
}
