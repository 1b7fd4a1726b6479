package sim

import (
	"fmt"
	"sort"

	"backlab/internal/runspec"
)

// 各插件类别的构造器。参数来自 RunSpec，构造失败视为解析期错误。
type (
	FeatureBuilder func(params map[string]any) (FeaturePlugin, error)
	SignalBuilder  func(params map[string]any) (SignalPlugin, error)
	PolicyBuilder  func(params map[string]any) (ExecutionPolicy, error)
	FillBuilder    func(params map[string]any, seed int64) (FillModel, error)
)

// Registry 是显式注入的 name → 构造器查找表，进程内构建一次、
// 作为依赖传入回放循环；核心内部没有任何全局可变注册状态，
// 也不做运行期反射扫描。
type Registry struct {
	features map[string]FeatureBuilder
	signals  map[string]SignalBuilder
	policies map[string]PolicyBuilder
	fills    map[string]FillBuilder
}

// NewRegistry 创建空表。
func NewRegistry() *Registry {
	return &Registry{
		features: make(map[string]FeatureBuilder),
		signals:  make(map[string]SignalBuilder),
		policies: make(map[string]PolicyBuilder),
		fills:    make(map[string]FillBuilder),
	}
}

func (r *Registry) RegisterFeature(kind string, b FeatureBuilder) { r.features[kind] = b }
func (r *Registry) RegisterSignal(kind string, b SignalBuilder)   { r.signals[kind] = b }
func (r *Registry) RegisterPolicy(kind string, b PolicyBuilder)   { r.policies[kind] = b }
func (r *Registry) RegisterFill(kind string, b FillBuilder)       { r.fills[kind] = b }

type policyEntry struct {
	policy   ExecutionPolicy
	priority int
	declared int
}

// Pipelines 是按 RunSpec 解析完成的插件链。
type Pipelines struct {
	Features []FeaturePlugin
	Signals  []SignalPlugin
	policies []policyEntry
	Fill     FillModel
}

// PoliciesInOrder 返回 (priority, 声明序) 排序后的策略链。
func (p *Pipelines) PoliciesInOrder() []ExecutionPolicy {
	out := make([]ExecutionPolicy, len(p.policies))
	for i, e := range p.policies {
		out[i] = e.policy
	}
	return out
}

// BuildPipelines 在回放开始前解析 RunSpec 引用的全部插件。
// 未注册的名字返回 PipelineResolutionError；特征列冲突与
// 依赖缺失也在这里拒绝，而不是等到逐 K 线执行时。
func BuildPipelines(reg *Registry, spec runspec.RunSpec) (*Pipelines, error) {
	if reg == nil {
		return nil, fmt.Errorf("registry 不能为空")
	}
	pipes := &Pipelines{}

	produced := make(map[string]string)
	for _, ref := range spec.Features {
		builder, ok := reg.features[ref.Name]
		if !ok {
			return nil, &PipelineResolutionError{Kind: "feature", Name: ref.Name}
		}
		plugin, err := builder(ref.Params)
		if err != nil {
			return nil, fmt.Errorf("构造 feature %s 失败: %w", ref.Name, err)
		}
		for _, dep := range plugin.Requires() {
			if _, ok := produced[dep]; !ok {
				return nil, fmt.Errorf("feature %s 依赖的列 %q 在其之前未被产出", plugin.Name(), dep)
			}
		}
		for _, out := range plugin.Outputs() {
			if owner, dup := produced[out]; dup {
				return nil, fmt.Errorf("feature %s 声明的列 %q 与 %s 冲突", plugin.Name(), out, owner)
			}
			produced[out] = plugin.Name()
		}
		pipes.Features = append(pipes.Features, plugin)
	}

	for _, ref := range spec.Signals {
		builder, ok := reg.signals[ref.Name]
		if !ok {
			return nil, &PipelineResolutionError{Kind: "signal", Name: ref.Name}
		}
		plugin, err := builder(ref.Params)
		if err != nil {
			return nil, fmt.Errorf("构造 signal %s 失败: %w", ref.Name, err)
		}
		for _, dep := range plugin.Requires() {
			if _, ok := produced[dep]; !ok {
				return nil, fmt.Errorf("signal %s 依赖的列 %q 不在 feature pipeline 产出中", plugin.Name(), dep)
			}
		}
		pipes.Signals = append(pipes.Signals, plugin)
	}

	for i, ref := range spec.Policies {
		builder, ok := reg.policies[ref.Name]
		if !ok {
			return nil, &PipelineResolutionError{Kind: "execution policy", Name: ref.Name}
		}
		policy, err := builder(ref.Params)
		if err != nil {
			return nil, fmt.Errorf("构造 policy %s 失败: %w", ref.Name, err)
		}
		pipes.policies = append(pipes.policies, policyEntry{policy: policy, priority: ref.Priority, declared: i})
	}
	// 同优先级按 RunSpec 声明序执行；稳定排序保证不会被静默重排。
	sort.SliceStable(pipes.policies, func(a, b int) bool {
		if pipes.policies[a].priority != pipes.policies[b].priority {
			return pipes.policies[a].priority < pipes.policies[b].priority
		}
		return pipes.policies[a].declared < pipes.policies[b].declared
	})

	fillBuilder, ok := reg.fills[spec.Fill.Name]
	if !ok {
		return nil, &PipelineResolutionError{Kind: "fill model", Name: spec.Fill.Name}
	}
	fill, err := fillBuilder(spec.Fill.Params, spec.Seed)
	if err != nil {
		return nil, fmt.Errorf("构造 fill model %s 失败: %w", spec.Fill.Name, err)
	}
	pipes.Fill = fill

	return pipes, nil
}

// newFrame 按特征流水线声明的列构建帧。
func (p *Pipelines) newFrame(n int) (*FeatureFrame, error) {
	frame := NewFeatureFrame(n)
	for _, plugin := range p.Features {
		for _, out := range plugin.Outputs() {
			if err := frame.AddColumn(out); err != nil {
				return nil, err
			}
		}
	}
	return frame, nil
}
