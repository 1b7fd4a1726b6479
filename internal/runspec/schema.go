package runspec

import (
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// specSchemaJSON 描述 RunSpec 文档的结构约束。
// 结构校验在加载侧完成：回放核心只负责确认插件名可解析。
const specSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["name", "symbol", "timeframe", "start_ts", "end_ts", "fill_model"],
  "properties": {
    "name": {"type": "string", "minLength": 1},
    "symbol": {"type": "string", "minLength": 1},
    "timeframe": {"type": "string", "minLength": 1},
    "start_ts": {"type": "integer", "minimum": 0},
    "end_ts": {"type": "integer", "minimum": 0},
    "initial_capital": {"type": "number", "minimum": 0},
    "seed": {"type": "integer"},
    "feature_pipeline": {"type": "array", "items": {"$ref": "#/$defs/plugin"}},
    "signal_pipeline": {"type": "array", "items": {"$ref": "#/$defs/plugin"}},
    "execution_policies": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["name", "priority"],
        "properties": {
          "name": {"type": "string", "minLength": 1},
          "priority": {"type": "integer"},
          "params": {"type": "object"}
        }
      }
    },
    "fill_model": {"$ref": "#/$defs/plugin"}
  },
  "$defs": {
    "plugin": {
      "type": "object",
      "required": ["name"],
      "properties": {
        "name": {"type": "string", "minLength": 1},
        "params": {"type": "object"}
      }
    }
  }
}`

var specSchema = jsonschema.MustCompileString("runspec.schema.json", specSchemaJSON)

// validateDocument 校验 yaml 解码出来的通用结构。
func validateDocument(doc any) error {
	return specSchema.Validate(doc)
}

// normalizeKeys 把 yaml 解出的 map[any]any 归一为 map[string]any，
// jsonschema 只接受 JSON 形态的值。
func normalizeKeys(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, inner := range val {
			out[strings.TrimSpace(k)] = normalizeKeys(inner)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, inner := range val {
			key, ok := k.(string)
			if !ok {
				continue
			}
			out[strings.TrimSpace(key)] = normalizeKeys(inner)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, inner := range val {
			out[i] = normalizeKeys(inner)
		}
		return out
	default:
		return v
	}
}
