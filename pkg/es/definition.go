package es

import (
	"encoding/json"
	"fmt"
	"os"
)

// IndexDefinition 是创建索引时提交的 settings 和 mappings，原样来自配置文件。
type IndexDefinition struct {
	Settings map[string]interface{} `json:"settings,omitempty"`
	Mappings map[string]interface{} `json:"mappings"`
}

// LoadIndexDefinition 从 JSON 文件加载索引定义，文件必须包含 mappings。
func LoadIndexDefinition(path string) (IndexDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return IndexDefinition{}, fmt.Errorf("读取索引定义失败: %w", err)
	}
	var def IndexDefinition
	if err := json.Unmarshal(data, &def); err != nil {
		return IndexDefinition{}, fmt.Errorf("解析索引定义 %s 失败: %w", path, err)
	}
	if def.Mappings == nil {
		return IndexDefinition{}, fmt.Errorf("索引定义 %s 缺少 mappings", path)
	}
	return def, nil
}

// VectorDefinition 返回只包含一个 dense_vector 字段和 title 的索引定义，基准测试使用。
func VectorDefinition(field string, dims int) IndexDefinition {
	return IndexDefinition{
		Mappings: map[string]interface{}{
			"properties": map[string]interface{}{
				"id":    map[string]interface{}{"type": "integer"},
				"title": map[string]interface{}{"type": "text"},
				field:   map[string]interface{}{"type": "dense_vector", "dims": dims},
			},
		},
	}
}

// VectorDims 返回 mappings 中 field 声明的 dense_vector 维度。
func (d IndexDefinition) VectorDims(field string) (int, error) {
	props, ok := d.Mappings["properties"].(map[string]interface{})
	if !ok {
		return 0, fmt.Errorf("mappings has no properties")
	}
	prop, ok := props[field].(map[string]interface{})
	if !ok {
		return 0, fmt.Errorf("mappings has no field %q", field)
	}
	if typ, _ := prop["type"].(string); typ != "dense_vector" {
		return 0, fmt.Errorf("field %q is %q, not dense_vector", field, typ)
	}
	switch dims := prop["dims"].(type) {
	case float64:
		return int(dims), nil
	case int:
		return dims, nil
	default:
		return 0, fmt.Errorf("field %q has no dims", field)
	}
}
