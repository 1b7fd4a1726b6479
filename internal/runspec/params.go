package runspec

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// CoerceSpecJSON 容忍提交侧常见的包装差异：根节点可以直接是
// runspec 对象，也可以包在 {"spec": {...}} 里。
func CoerceSpecJSON(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("runspec json 内容为空")
	}
	if !gjson.Valid(raw) {
		return "", fmt.Errorf("runspec json 格式无效")
	}
	parsed := gjson.Parse(raw)
	if !parsed.IsObject() {
		return "", fmt.Errorf("runspec 根节点必须是 JSON 对象")
	}
	if inner := parsed.Get("spec"); inner.Exists() && inner.IsObject() {
		return strings.TrimSpace(inner.Raw), nil
	}
	return raw, nil
}

// ParamNumber 从参数 map 中取数值，容忍字符串形态的数字。
func ParamNumber(params map[string]any, key string) (float64, bool) {
	raw, ok := params[key]
	if !ok {
		return 0, false
	}
	switch v := raw.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// ParamString 取字符串参数。
func ParamString(params map[string]any, key string) (string, bool) {
	raw, ok := params[key]
	if !ok {
		return "", false
	}
	s, ok := raw.(string)
	if !ok {
		return "", false
	}
	return strings.TrimSpace(s), true
}
