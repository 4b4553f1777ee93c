package policy

import (
	"testing"

	"fmc-sim/internal/types"
)

func order(seq, priority, due int, productID string) *types.Order {
	return &types.Order{
		ID:             "ORD",
		ProductID:      productID,
		Priority:       priority,
		DueTimeMinutes: due,
		Sequence:       seq,
	}
}

func TestFIFOReleasesByLoadOrder(t *testing.T) {
	due := []*types.Order{
		order(2, 9, -1, "A"),
		order(0, 1, -1, "B"),
		order(1, 5, -1, "C"),
	}
	if got := (FIFO{}).Next(due, 0); got != 1 {
		t.Errorf("FIFO 应选择加载顺序最早的订单 (下标 1), 得到 %d", got)
	}
}

func TestPriorityHighestValueFirst(t *testing.T) {
	due := []*types.Order{
		order(0, 1, -1, "A"),
		order(1, 3, -1, "B"),
		order(2, 3, -1, "C"),
	}
	// 数值越大优先级越高；相同优先级按加载顺序裁决
	if got := (Priority{}).Next(due, 0); got != 1 {
		t.Errorf("PRIORITY 应选择优先级 3 中加载更早的订单 (下标 1), 得到 %d", got)
	}
}

func TestSPTShortestAssemblyFirst(t *testing.T) {
	catalog := map[string]*types.Product{
		"FAST":   {ID: "FAST", BaseAssemblyMinutes: 10},
		"SLOW":   {ID: "SLOW", BaseAssemblyMinutes: 40},
		"MEDIUM": {ID: "MEDIUM", BaseAssemblyMinutes: 20},
	}
	due := []*types.Order{
		order(0, 0, -1, "SLOW"),
		order(1, 0, -1, "MEDIUM"),
		order(2, 0, -1, "FAST"),
		order(3, 0, -1, "UNKNOWN"), // 未知产品排在最后
	}
	s := NewSPT(catalog)
	if got := s.Next(due, 0); got != 2 {
		t.Errorf("SPT 应选择装配最短的订单 (下标 2), 得到 %d", got)
	}
}

func TestEDDEarliestDueFirst(t *testing.T) {
	due := []*types.Order{
		order(0, 0, -1, "A"), // 无交期排最后
		order(1, 0, 300, "B"),
		order(2, 0, 120, "C"),
		order(3, 0, 120, "D"), // 与 C 平局，按加载顺序输给 C
	}
	if got := (EDD{}).Next(due, 0); got != 2 {
		t.Errorf("EDD 应选择交期最早且加载更早的订单 (下标 2), 得到 %d", got)
	}
}

func TestEDDNoDueDateLast(t *testing.T) {
	due := []*types.Order{
		order(0, 0, -1, "A"),
		order(1, 0, -1, "B"),
	}
	// 全部无交期时退化为加载顺序
	if got := (EDD{}).Next(due, 0); got != 0 {
		t.Errorf("无交期订单间应按加载顺序, 得到 %d", got)
	}
}

func TestRulePolicyScoring(t *testing.T) {
	r, err := NewRule("order.Priority * 10 - (now - order.ReleaseTimeMinutes)")
	if err != nil {
		t.Fatalf("编译表达式失败: %v", err)
	}
	due := []*types.Order{
		order(0, 1, -1, "A"), // 得分 10
		order(1, 5, -1, "B"), // 得分 50
		order(2, 3, -1, "C"), // 得分 30
	}
	if got := r.Next(due, 0); got != 1 {
		t.Errorf("RULE 应选择得分最高的订单 (下标 1), 得到 %d", got)
	}
}

func TestRulePolicyRejectsEmptyExpression(t *testing.T) {
	if _, err := NewRule(""); err == nil {
		t.Error("空表达式应当报错")
	}
}

func TestNewByName(t *testing.T) {
	for _, name := range []string{"FIFO", "fifo", "PRIORITY", "EDD"} {
		p, err := New(name, "")
		if err != nil {
			t.Errorf("策略 %s 构造失败: %v", name, err)
		} else if p == nil {
			t.Errorf("策略 %s 返回 nil", name)
		}
	}
	if _, err := New("LIFO", ""); err == nil {
		t.Error("未知策略名应当报错")
	}
	if p, err := NewWithCatalog("SPT", "", nil); err != nil || p.Name() != "SPT" {
		t.Errorf("NewWithCatalog 应能构造 SPT, 得到 %v, %v", p, err)
	}
}
