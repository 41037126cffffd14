// Package conv 读取 YAML/JSON 解码得到的 map[string]any 节点配置。
//
// key 缺失时返回默认值；key 存在但类型不符时返回错误，
// 避免 `limit: "10"` 这类笔误被静默忽略。
package conv

import (
	"fmt"
	"math"
	"strconv"
)

// Float64 将数字类型转为 float64。YAML 解码得到 int，JSON 解码得到 float64。
func Float64(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case int32:
		return float64(val), true
	case uint64:
		return float64(val), true
	default:
		return 0, false
	}
}

// String 读取字符串配置。
func String(m map[string]any, key, def string) (string, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return def, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", typeError(key, "string", v)
	}
	return s, nil
}

// Bool 读取布尔配置。
func Bool(m map[string]any, key string, def bool) (bool, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return def, nil
	}
	b, ok := v.(bool)
	if !ok {
		return false, typeError(key, "bool", v)
	}
	return b, nil
}

// Int 读取整数配置，带小数部分的数字视为类型错误。
func Int(m map[string]any, key string, def int) (int, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return def, nil
	}
	f, ok := Float64(v)
	if !ok || f != math.Trunc(f) {
		return 0, typeError(key, "integer", v)
	}
	return int(f), nil
}

// Strings 读取字符串列表。纯数字元素按整数格式化（YAML 中的数字商品 ID）。
func Strings(m map[string]any, key string) ([]string, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return nil, nil
	}
	raw, ok := v.([]any)
	if !ok {
		return nil, typeError(key, "list", v)
	}
	out := make([]string, 0, len(raw))
	for i, e := range raw {
		switch val := e.(type) {
		case string:
			out = append(out, val)
		default:
			f, ok := Float64(val)
			if !ok || f != math.Trunc(f) {
				return nil, typeError(fmt.Sprintf("%s[%d]", key, i), "string", e)
			}
			out = append(out, strconv.FormatInt(int64(f), 10))
		}
	}
	return out, nil
}

func typeError(key, want string, got any) error {
	return fmt.Errorf("%s: expected %s, got %T", key, want, got)
}
