// Package conv 提供从 YAML/JSON 解析结果（map[string]any）中读取节点配置的工具。
// YAML 常得到 int，JSON 常得到 float64，这里统一交给 cast 处理。
package conv

import (
	"time"

	"github.com/spf13/cast"
)

// ToFloat64 将 any 转为 float64，支持数字、bool 与数字字符串。
func ToFloat64(v any) (float64, bool) {
	if v == nil {
		return 0, false
	}
	f, err := cast.ToFloat64E(v)
	return f, err == nil
}

// ToInt 将 any 转为 int。
func ToInt(v any) (int, bool) {
	if v == nil {
		return 0, false
	}
	i, err := cast.ToIntE(v)
	return i, err == nil
}

// ToString 仅接受 string。
func ToString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

// ToStringSlice 将 []any / []string 转为 []string；数字 SKU 按整数格式输出。
func ToStringSlice(v any) []string {
	if v == nil {
		return nil
	}
	out, err := cast.ToStringSliceE(v)
	if err != nil {
		return nil
	}
	return out
}

// ConfigGet 按 key 取 T，取不到或类型不符时返回 defaultVal。
func ConfigGet[T any](m map[string]any, key string, defaultVal T) T {
	v, ok := m[key]
	if !ok {
		return defaultVal
	}
	t, ok := v.(T)
	if !ok {
		return defaultVal
	}
	return t
}

func ConfigGetFloat64(m map[string]any, key string, defaultVal float64) float64 {
	if f, ok := ToFloat64(m[key]); ok {
		return f
	}
	return defaultVal
}

func ConfigGetInt(m map[string]any, key string, defaultVal int) int {
	if i, ok := ToInt(m[key]); ok {
		return i
	}
	return defaultVal
}

func ConfigGetBool(m map[string]any, key string, defaultVal bool) bool {
	v, ok := m[key]
	if !ok || v == nil {
		return defaultVal
	}
	b, err := cast.ToBoolE(v)
	if err != nil {
		return defaultVal
	}
	return b
}

// ConfigGetDuration 支持 "30s" 这样的字符串，数字按纳秒解释。
func ConfigGetDuration(m map[string]any, key string, defaultVal time.Duration) time.Duration {
	v, ok := m[key]
	if !ok || v == nil {
		return defaultVal
	}
	d, err := cast.ToDurationE(v)
	if err != nil {
		return defaultVal
	}
	return d
}

// ConfigGetMaps 读取 []map[string]any 形式的子配置，例如 filter 节点的 filters 列表。
func ConfigGetMaps(m map[string]any, key string) []map[string]any {
	raw, ok := m[key].([]any)
	if !ok {
		if typed, ok := m[key].([]map[string]any); ok {
			return typed
		}
		return nil
	}
	out := make([]map[string]any, 0, len(raw))
	for _, e := range raw {
		if sub, err := cast.ToStringMapE(e); err == nil {
			out = append(out, sub)
		}
	}
	return out
}
