package policy

import (
	"fmt"
	"strings"

	"fmc-sim/internal/types"
)

// Policy 定义下达策略的统一抽象
// 输入是当前时刻已到期、尚未下达的订单集合，输出是下一张应当下达的
// 订单在该集合中的下标；集合为空时不会被调用
type Policy interface {
	Name() string
	Next(due []*types.Order, now int) int
}

// New 根据配置的策略名称构造对应的策略实例
// rule 仅对 RULE 策略有意义，是一个对单张订单打分的 expr 表达式
func New(name, rule string) (Policy, error) {
	switch strings.ToUpper(name) {
	case "FIFO", "":
		return FIFO{}, nil
	case "PRIORITY":
		return Priority{}, nil
	case "SPT":
		return nil, fmt.Errorf("SPT 策略需要产品目录, 请使用 NewSPT")
	case "EDD":
		return EDD{}, nil
	case "RULE":
		return NewRule(rule)
	default:
		return nil, fmt.Errorf("未知的下达策略: %s", name)
	}
}

// NewWithCatalog 与 New 相同，但为需要产品数据的策略（SPT）注入目录
func NewWithCatalog(name, rule string, catalog map[string]*types.Product) (Policy, error) {
	if strings.ToUpper(name) == "SPT" {
		return NewSPT(catalog), nil
	}
	return New(name, rule)
}

// FIFO 按加载顺序下达到期订单，是基线策略
type FIFO struct{}

func (FIFO) Name() string { return "FIFO" }

func (FIFO) Next(due []*types.Order, now int) int {
	best := 0
	for i, o := range due {
		if o.Sequence < due[best].Sequence {
			best = i
		}
	}
	return best
}

// Priority 按优先级下达：数值越大优先级越高，先下达
// 平局按加载顺序裁决
type Priority struct{}

func (Priority) Name() string { return "PRIORITY" }

func (Priority) Next(due []*types.Order, now int) int {
	best := 0
	for i, o := range due {
		b := due[best]
		if o.Priority > b.Priority || (o.Priority == b.Priority && o.Sequence < b.Sequence) {
			best = i
		}
	}
	return best
}

// SPT 最短加工时间优先：按产品的基础装配时长升序下达
// 目录中不存在的产品排在最后（交给工位去拒绝），平局按加载顺序
type SPT struct {
	catalog map[string]*types.Product
}

// NewSPT 创建一个持有产品目录引用的 SPT 策略
func NewSPT(catalog map[string]*types.Product) SPT {
	return SPT{catalog: catalog}
}

func (SPT) Name() string { return "SPT" }

func (s SPT) Next(due []*types.Order, now int) int {
	best := 0
	for i, o := range due {
		if i == 0 {
			continue
		}
		oi, bi := s.assemblyMinutes(o), s.assemblyMinutes(due[best])
		if oi < bi || (oi == bi && o.Sequence < due[best].Sequence) {
			best = i
		}
	}
	return best
}

func (s SPT) assemblyMinutes(o *types.Order) int {
	if p, ok := s.catalog[o.ProductID]; ok {
		return p.BaseAssemblyMinutes
	}
	// 未知产品视为无穷大的加工时间
	return int(^uint(0) >> 1)
}

// EDD 最早交期优先：按交期升序下达
// 未设置交期（-1）的订单排在所有有交期的订单之后，平局按加载顺序
type EDD struct{}

func (EDD) Name() string { return "EDD" }

func (EDD) Next(due []*types.Order, now int) int {
	best := 0
	for i, o := range due {
		if i == 0 {
			continue
		}
		if eddBefore(o, due[best]) {
			best = i
		}
	}
	return best
}

func eddBefore(a, b *types.Order) bool {
	ad, bd := a.DueTimeMinutes, b.DueTimeMinutes
	switch {
	case ad >= 0 && bd < 0:
		return true
	case ad < 0 && bd >= 0:
		return false
	case ad != bd:
		return ad < bd
	default:
		return a.Sequence < b.Sequence
	}
}
