package warehouse

import (
	"log/slog"
	"sync"
)

// Warehouse 是仓库库存：组件数量与成品数量两张映射
// 它是唯一被多个独立 worker 并发修改的共享资源，所有读写都在同一把
// 互斥锁的临界区内完成；预定（reserve）对整个需求清单是原子的——
// 要么全部扣减，要么完全不动
type Warehouse struct {
	mu               sync.Mutex
	components       map[string]int // 组件 ID -> 可用数量
	finishedProducts map[string]int // 成品 ID -> 已产出数量
	logger           *slog.Logger
}

// New 创建一个空仓库
func New(logger *slog.Logger) *Warehouse {
	return &Warehouse{
		components:       make(map[string]int),
		finishedProducts: make(map[string]int),
		logger:           logger.With("component", "warehouse"),
	}
}

// HasComponents 只读地检查需求清单是否全部可满足，无任何副作用
func (w *Warehouse) HasComponents(required map[string]int) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.satisfiable(required)
}

// satisfiable 必须在持锁状态下调用
func (w *Warehouse) satisfiable(required map[string]int) bool {
	for id, qty := range required {
		if w.components[id] < qty {
			return false
		}
	}
	return true
}

// ReserveComponents 原子地预定整张需求清单
// 先在同一临界区内检查全部组件的可用性，全部满足才逐项扣减；
// 任何一项不足都返回 false 且不产生任何扣减
func (w *Warehouse) ReserveComponents(required map[string]int) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.satisfiable(required) {
		return false
	}
	for id, qty := range required {
		w.components[id] -= qty
	}
	return true
}

// ReturnComponents 将一次成功预定的组件原样退回仓库
// 用于调度被放弃（例如停机）时的回滚，保证预定过的库存不会凭空消失
func (w *Warehouse) ReturnComponents(required map[string]int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for id, qty := range required {
		w.components[id] += qty
	}
	w.logger.Warn("已退回预定组件", "items", len(required))
}

// AddComponent 无条件增加某组件的库存
func (w *Warehouse) AddComponent(componentID string, quantity int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.components[componentID] += quantity
}

// AddFinishedProduct 成品入库，数量加一
func (w *Warehouse) AddFinishedProduct(productID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.finishedProducts[productID]++
}

// ComponentQuantity 返回某组件当前的可用数量
func (w *Warehouse) ComponentQuantity(componentID string) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.components[componentID]
}

// FinishedProductCount 返回某成品当前的入库数量
func (w *Warehouse) FinishedProductCount(productID string) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.finishedProducts[productID]
}

// Snapshot 返回库存的一份深拷贝，用于状态接口和报表
func (w *Warehouse) Snapshot() (components, finished map[string]int) {
	w.mu.Lock()
	defer w.mu.Unlock()

	components = make(map[string]int, len(w.components))
	for id, qty := range w.components {
		components[id] = qty
	}
	finished = make(map[string]int, len(w.finishedProducts))
	for id, qty := range w.finishedProducts {
		finished[id] = qty
	}
	return components, finished
}
