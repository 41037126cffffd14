package model

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Entry 是稀疏行中的一个元素：商品 ID 与对应的值（交互次数或相似度）。
type Entry struct {
	ItemID string  `json:"item" yaml:"item"`
	Score  float64 `json:"score" yaml:"score"`
}

// Row 是有序的稀疏行。顺序有意义：它决定评分时候选商品进入累加器的先后，
// 进而决定同分时的排序。
type Row []Entry

// Get 按商品 ID 查找值。
func (r Row) Get(itemID string) (float64, bool) {
	for _, e := range r {
		if e.ItemID == itemID {
			return e.Score, true
		}
	}
	return 0, false
}

// UnmarshalYAML 从 YAML/JSON 映射解析，保留文件中的键顺序。
func (r *Row) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: row must be a mapping of item to value", node.Line)
	}
	row := make(Row, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		k, v := node.Content[i], node.Content[i+1]
		var score float64
		if err := v.Decode(&score); err != nil {
			return fmt.Errorf("line %d: item %q: %w", v.Line, k.Value, err)
		}
		row = append(row, Entry{ItemID: k.Value, Score: score})
	}
	*r = row
	return nil
}

// Matrix 是按 key 索引的稀疏行集合，记录 key 的插入顺序。
// 用于用户-商品交互矩阵（key 为用户）和两张相似度表（key 为商品）。
type Matrix struct {
	keys []string
	rows map[string]Row
}

// NewMatrix 创建空矩阵。
func NewMatrix() *Matrix {
	return &Matrix{rows: make(map[string]Row)}
}

// Set 写入一行；key 第一次出现时确定其顺序，重复写入只替换行内容。
func (m *Matrix) Set(key string, row Row) {
	if m.rows == nil {
		m.rows = make(map[string]Row)
	}
	if _, ok := m.rows[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.rows[key] = row
}

// Row 返回 key 对应的行，调用方不得修改返回值。
func (m *Matrix) Row(key string) (Row, bool) {
	if m == nil {
		return nil, false
	}
	row, ok := m.rows[key]
	return row, ok
}

// Keys 返回所有 key 的副本（按插入顺序）。
func (m *Matrix) Keys() []string {
	if m == nil {
		return nil
	}
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

// Len 返回行数。
func (m *Matrix) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// clone 深拷贝矩阵，transform 可对每行做处理（例如排序）。
func (m *Matrix) clone(transform func(Row) Row) *Matrix {
	out := NewMatrix()
	if m == nil {
		return out
	}
	for _, k := range m.keys {
		row := make(Row, len(m.rows[k]))
		copy(row, m.rows[k])
		if transform != nil {
			row = transform(row)
		}
		out.Set(k, row)
	}
	return out
}

// UnmarshalYAML 解析 key -> row 的映射，保留 key 顺序。
func (m *Matrix) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: matrix must be a mapping", node.Line)
	}
	*m = Matrix{rows: make(map[string]Row, len(node.Content)/2)}
	for i := 0; i+1 < len(node.Content); i += 2 {
		k, v := node.Content[i], node.Content[i+1]
		if _, dup := m.rows[k.Value]; dup {
			return fmt.Errorf("line %d: duplicate key %q", k.Line, k.Value)
		}
		var row Row
		if err := v.Decode(&row); err != nil {
			return fmt.Errorf("key %q: %w", k.Value, err)
		}
		m.Set(k.Value, row)
	}
	return nil
}

// MarshalYAML 按 key 顺序输出映射。
func (m *Matrix) MarshalYAML() (any, error) {
	root := &yaml.Node{Kind: yaml.MappingNode}
	for _, k := range m.keys {
		rowNode := &yaml.Node{Kind: yaml.MappingNode, Style: yaml.FlowStyle}
		for _, e := range m.rows[k] {
			var v yaml.Node
			if err := v.Encode(e.Score); err != nil {
				return nil, err
			}
			rowNode.Content = append(rowNode.Content,
				&yaml.Node{Kind: yaml.ScalarNode, Value: e.ItemID}, &v)
		}
		root.Content = append(root.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: k}, rowNode)
	}
	return root, nil
}
