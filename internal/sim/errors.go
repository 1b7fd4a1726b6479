package sim

import "fmt"

// CausalityViolation 表示插件试图读取当前回放索引之后的数据。
// 始终视为插件 bug，立刻终止整个 run，绝不静默截断。
type CausalityViolation struct {
	Index     int
	Requested int
	Column    string
}

func (e *CausalityViolation) Error() string {
	if e == nil {
		return ""
	}
	if e.Column != "" {
		return fmt.Sprintf("causality violation: column %s requested index %d while fenced at %d", e.Column, e.Requested, e.Index)
	}
	return fmt.Sprintf("causality violation: requested index %d while fenced at %d", e.Requested, e.Index)
}

// FeatureComputationError 携带失败插件与 K 线索引，run 级致命。
type FeatureComputationError struct {
	Plugin string
	Index  int
	Err    error
}

func (e *FeatureComputationError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("feature plugin %s failed at index %d: %v", e.Plugin, e.Index, e.Err)
}

func (e *FeatureComputationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// SignalGenerationError 同上，作用于信号阶段。
type SignalGenerationError struct {
	Plugin string
	Index  int
	Err    error
}

func (e *SignalGenerationError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("signal plugin %s failed at index %d: %v", e.Plugin, e.Index, e.Err)
}

func (e *SignalGenerationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// ExecutionPolicyError 作用于执行策略阶段；同索引内更早优先级策略
// 已落账的事件保留（它们是已发生的合法事件），run 整体标记失败。
type ExecutionPolicyError struct {
	Plugin string
	Index  int
	Err    error
}

func (e *ExecutionPolicyError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("execution policy %s failed at index %d: %v", e.Plugin, e.Index, e.Err)
}

func (e *ExecutionPolicyError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// PipelineResolutionError 表示 RunSpec 引用了未注册的插件，
// 在回放开始前触发，不属于逐 K 线错误。
type PipelineResolutionError struct {
	Kind string
	Name string
}

func (e *PipelineResolutionError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("pipeline resolution failed: %s plugin %q is not registered", e.Kind, e.Name)
}

// FillModelError 表示确定性成交计算失败（例如畸形 order intent）。
type FillModelError struct {
	Model string
	Index int
	Err   error
}

func (e *FillModelError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("fill model %s failed at index %d: %v", e.Model, e.Index, e.Err)
}

func (e *FillModelError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
