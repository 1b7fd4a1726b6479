package runspec

// PluginRef 引用一个已注册插件及其参数。
type PluginRef struct {
	Name   string         `json:"name" yaml:"name" mapstructure:"name"`
	Params map[string]any `json:"params,omitempty" yaml:"params" mapstructure:"params"`
}

// PolicyRef 额外携带显式数字优先级；同优先级按声明顺序执行。
type PolicyRef struct {
	Name     string         `json:"name" yaml:"name" mapstructure:"name"`
	Priority int            `json:"priority" yaml:"priority" mapstructure:"priority"`
	Params   map[string]any `json:"params,omitempty" yaml:"params" mapstructure:"params"`
}

// RunSpec 完整解析一次模拟：流水线、优先级与随机种子。
// 核心把它当不可变配置值；除 {RunSpec, 物化数据, 账本} 外
// 不允许消费任何状态。
type RunSpec struct {
	Name           string      `json:"name" yaml:"name" mapstructure:"name"`
	Symbol         string      `json:"symbol" yaml:"symbol" mapstructure:"symbol"`
	Timeframe      string      `json:"timeframe" yaml:"timeframe" mapstructure:"timeframe"`
	StartTS        int64       `json:"start_ts" yaml:"start_ts" mapstructure:"start_ts"`
	EndTS          int64       `json:"end_ts" yaml:"end_ts" mapstructure:"end_ts"`
	InitialCapital float64     `json:"initial_capital" yaml:"initial_capital" mapstructure:"initial_capital"`
	Seed           int64       `json:"seed" yaml:"seed" mapstructure:"seed"`
	Features       []PluginRef `json:"feature_pipeline" yaml:"feature_pipeline" mapstructure:"feature_pipeline"`
	Signals        []PluginRef `json:"signal_pipeline" yaml:"signal_pipeline" mapstructure:"signal_pipeline"`
	Policies       []PolicyRef `json:"execution_policies" yaml:"execution_policies" mapstructure:"execution_policies"`
	Fill           PluginRef   `json:"fill_model" yaml:"fill_model" mapstructure:"fill_model"`
}
