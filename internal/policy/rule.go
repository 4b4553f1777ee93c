package policy

import (
	"fmt"

	"github.com/antonmedv/expr"
	"github.com/antonmedv/expr/vm"

	"fmc-sim/internal/types"
)

// Rule 是由 expr 表达式驱动的自定义下达策略
// 表达式对单张订单打分，得分最高者先下达，平局按加载顺序
// 表达式环境: order (订单), now (当前仿真分钟)
// 例如 "order.Priority * 10 - (now - order.ReleaseTimeMinutes)"
type Rule struct {
	source  string
	program *vm.Program
}

// NewRule 编译打分表达式并构造策略
// 编译在配置阶段完成一次，下达循环中只做求值
func NewRule(source string) (*Rule, error) {
	if source == "" {
		return nil, fmt.Errorf("RULE 策略需要非空的 policy_rule 表达式")
	}
	env := map[string]interface{}{
		"order": &types.Order{},
		"now":   0,
	}
	program, err := expr.Compile(source, expr.Env(env))
	if err != nil {
		return nil, fmt.Errorf("编译策略表达式失败: %w", err)
	}
	return &Rule{source: source, program: program}, nil
}

func (r *Rule) Name() string { return "RULE" }

func (r *Rule) Next(due []*types.Order, now int) int {
	best := 0
	bestScore := r.score(due[0], now)
	for i := 1; i < len(due); i++ {
		s := r.score(due[i], now)
		if s > bestScore || (s == bestScore && due[i].Sequence < due[best].Sequence) {
			best = i
			bestScore = s
		}
	}
	return best
}

// score 对单张订单求值；求值失败时返回最低分，订单退化为最后下达
func (r *Rule) score(o *types.Order, now int) float64 {
	env := map[string]interface{}{
		"order": o,
		"now":   now,
	}
	result, err := expr.Run(r.program, env)
	if err != nil {
		return -1 << 62
	}
	switch v := result.(type) {
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case float64:
		return v
	default:
		return -1 << 62
	}
}
