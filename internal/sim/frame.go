package sim

import (
	"fmt"
	"math"
)

// FeatureFrame 保存特征阶段追加出来的派生列。
// 列只能追加，单元格只能写一次：回放越过某个索引后，该行只读。
type FeatureFrame struct {
	length  int
	order   []string
	columns map[string][]float64
	written map[string][]bool
}

// NewFeatureFrame 创建长度为 n 的空帧。
func NewFeatureFrame(n int) *FeatureFrame {
	return &FeatureFrame{
		length:  n,
		columns: make(map[string][]float64),
		written: make(map[string][]bool),
	}
}

// Len 返回帧长度（与 K 线数一致）。
func (f *FeatureFrame) Len() int { return f.length }

// Columns 返回声明顺序的列名。
func (f *FeatureFrame) Columns() []string {
	return append([]string(nil), f.order...)
}

// HasColumn 判断列是否已声明。
func (f *FeatureFrame) HasColumn(name string) bool {
	_, ok := f.columns[name]
	return ok
}

// AddColumn 声明新列，重名违反不可变约束。
func (f *FeatureFrame) AddColumn(name string) error {
	if name == "" {
		return fmt.Errorf("feature column 名称不能为空")
	}
	if _, ok := f.columns[name]; ok {
		return fmt.Errorf("feature column %q 已存在，禁止覆盖", name)
	}
	col := make([]float64, f.length)
	for i := range col {
		col[i] = math.NaN()
	}
	f.columns[name] = col
	f.written[name] = make([]bool, f.length)
	f.order = append(f.order, name)
	return nil
}

// setAt 在 (name, idx) 写入一次；重复写入与未知列都是错误。
func (f *FeatureFrame) setAt(name string, idx int, val float64) error {
	col, ok := f.columns[name]
	if !ok {
		return fmt.Errorf("feature column %q 未声明", name)
	}
	if idx < 0 || idx >= f.length {
		return fmt.Errorf("feature column %q 索引 %d 越界", name, idx)
	}
	if f.written[name][idx] {
		return fmt.Errorf("feature column %q 在索引 %d 已写入，禁止覆盖", name, idx)
	}
	col[idx] = val
	f.written[name][idx] = true
	return nil
}

// valueAt 读取单元格；未写入返回 NaN（插件自行处理 warm-up）。
func (f *FeatureFrame) valueAt(name string, idx int) (float64, error) {
	col, ok := f.columns[name]
	if !ok {
		return math.NaN(), fmt.Errorf("feature column %q 未声明", name)
	}
	if idx < 0 || idx >= f.length {
		return math.NaN(), fmt.Errorf("feature column %q 索引 %d 越界", name, idx)
	}
	return col[idx], nil
}
