package utils

import "strings"

// Label 是推荐链路中的可解释标记：记录商品为什么被召回、被谁过滤、经过哪个排序。
// Value 与 Source 的语义由业务自定义。
type Label struct {
	Value  string `json:"value"`
	Source string `json:"source"` // recall / filter / rerank ...
}

// MergeLabel 合并同名 Label，保留历史：
//   - Value 以 '|' 累积
//   - Source 以 ',' 累积，重复来源只保留一次
func MergeLabel(existing Label, incoming Label) Label {
	if existing.Value == "" {
		return incoming
	}
	if incoming.Value == "" {
		return existing
	}

	merged := Label{Value: existing.Value + "|" + incoming.Value}
	switch {
	case existing.Source == "":
		merged.Source = incoming.Source
	case incoming.Source == "" || containsSource(existing.Source, incoming.Source):
		merged.Source = existing.Source
	default:
		merged.Source = existing.Source + "," + incoming.Source
	}
	return merged
}

func containsSource(sources, source string) bool {
	for _, s := range strings.Split(sources, ",") {
		if s == source {
			return true
		}
	}
	return false
}
