package runspec

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// Load 读取并解析一个 RunSpec 文档（yaml 或 json），
// 先过 jsonschema 再反序列化，返回已解析的不可变值。
func Load(path string) (RunSpec, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return RunSpec{}, fmt.Errorf("读取 runspec 失败: %w", err)
	}
	return Parse(raw, strings.EqualFold(filepath.Ext(path), ".json"))
}

// Parse 解析 RunSpec 字节串；isJSON 为 false 时按 yaml 解码。
func Parse(raw []byte, isJSON bool) (RunSpec, error) {
	var doc any
	if isJSON {
		if err := json.Unmarshal(raw, &doc); err != nil {
			return RunSpec{}, fmt.Errorf("解析 runspec JSON 失败: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(raw, &doc); err != nil {
			return RunSpec{}, fmt.Errorf("解析 runspec YAML 失败: %w", err)
		}
		doc = normalizeKeys(doc)
		// jsonschema 校验的是 JSON 值形态，yaml 解码结果先走一次 JSON 往返。
		buf, err := json.Marshal(doc)
		if err != nil {
			return RunSpec{}, err
		}
		if err := json.Unmarshal(buf, &doc); err != nil {
			return RunSpec{}, err
		}
	}
	if err := validateDocument(doc); err != nil {
		return RunSpec{}, fmt.Errorf("runspec schema 校验失败: %w", err)
	}
	var spec RunSpec
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
		Result:           &spec,
	})
	if err != nil {
		return RunSpec{}, err
	}
	if err := dec.Decode(doc); err != nil {
		return RunSpec{}, fmt.Errorf("解析 runspec 结构失败: %w", err)
	}
	spec.applyDefaults()
	if err := spec.Validate(); err != nil {
		return RunSpec{}, err
	}
	return spec, nil
}

func (s *RunSpec) applyDefaults() {
	if s.InitialCapital <= 0 {
		s.InitialCapital = 10000
	}
	if s.Fill.Name == "" {
		s.Fill.Name = "close"
	}
	s.Symbol = strings.ToUpper(strings.TrimSpace(s.Symbol))
	s.Timeframe = strings.ToLower(strings.TrimSpace(s.Timeframe))
}

// Validate 做 schema 之外的语义校验。
func (s RunSpec) Validate() error {
	if s.EndTS <= s.StartTS {
		return fmt.Errorf("runspec %s: end_ts 必须大于 start_ts", s.Name)
	}
	if len(s.Policies) == 0 {
		return fmt.Errorf("runspec %s: 至少需要一个 execution policy", s.Name)
	}
	return nil
}
