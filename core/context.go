package core

// RecommendContext 是一次推荐请求的上下文，贯穿整个 Pipeline 透传。
type RecommendContext struct {
	UserID string

	// Season 与季节热度记录按字符串相等比较，不做枚举校验
	Season string

	// TopN 是请求希望返回的数量，由 rerank.TopNNode 使用（节点自身配置优先）
	TopN int

	// Params 请求级参数，例如 store_id、channel；在 CEL 表达式中为 rctx.params
	Params map[string]any
}

// Param 读取字符串类型的请求参数。
func (rctx *RecommendContext) Param(key string) (string, bool) {
	if rctx == nil || rctx.Params == nil {
		return "", false
	}
	v, ok := rctx.Params[key].(string)
	return v, ok
}
