package web

import (
	"sync"

	"fmc-sim/internal/types"
)

// OrderState 定义了用于 UI 展示的订单状态
// 这是一个简化的视图，只包含前端需要的数据
type OrderState struct {
	ID        string `json:"id"`
	ProductID string `json:"product_id"`
	Priority  int    `json:"priority"`
	Status    string `json:"status"` // RELEASED / COMPLETED / REJECTED
	LeadTime  int    `json:"lead_time,omitempty"`
}

// AGVView 定义了用于 UI 展示的单台 AGV 状态
type AGVView struct {
	ID          int    `json:"id"`
	State       string `json:"state"`
	ComponentID string `json:"component_id,omitempty"`
}

// CellState 代表整个制造单元的实时状态快照
type CellState struct {
	SimTime int                   `json:"sim_time"` // 当前仿真时间（分钟）
	Orders  map[string]OrderState `json:"orders"`
	AGVs    map[int]AGVView       `json:"agvs"`
}

// StateTracker 负责追踪订单与车队的实时状态，并通知前端更新
type StateTracker struct {
	mu    sync.RWMutex
	state CellState
	hub   *Hub
}

// NewStateTracker 创建一个新的 StateTracker 实例
func NewStateTracker(hub *Hub) *StateTracker {
	return &StateTracker{
		state: CellState{
			Orders: make(map[string]OrderState),
			AGVs:   make(map[int]AGVView),
		},
		hub: hub,
	}
}

// TrackOrder 把一张新下达的订单加入状态视图，并广播
func (st *StateTracker) TrackOrder(o *types.Order, simTime int) {
	st.mu.Lock()
	defer st.mu.Unlock()

	st.state.SimTime = simTime
	st.state.Orders[o.ID] = OrderState{
		ID:        o.ID,
		ProductID: o.ProductID,
		Priority:  o.Priority,
		Status:    "RELEASED",
	}
	st.hub.BroadcastState(st.snapshotLocked())
}

// UpdateOrderStatus 更新单张订单的状态，并向所有客户端广播最新的全局状态
func (st *StateTracker) UpdateOrderStatus(orderID, status string, leadTime, simTime int) {
	st.mu.Lock()
	defer st.mu.Unlock()

	st.state.SimTime = simTime
	if o, ok := st.state.Orders[orderID]; ok {
		o.Status = status
		o.LeadTime = leadTime
		st.state.Orders[orderID] = o
	}
	st.hub.BroadcastState(st.snapshotLocked())
}

// UpdateAGV 更新单台 AGV 的状态视图，并广播
func (st *StateTracker) UpdateAGV(agvID int, state, componentID string, simTime int) {
	st.mu.Lock()
	defer st.mu.Unlock()

	st.state.SimTime = simTime
	st.state.AGVs[agvID] = AGVView{ID: agvID, State: state, ComponentID: componentID}
	st.hub.BroadcastState(st.snapshotLocked())
}

// GetStateSnapshot 返回当前全局状态的一个深拷贝副本
// 用于新客户端连接时获取一次全量数据
func (st *StateTracker) GetStateSnapshot() CellState {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.snapshotLocked()
}

// snapshotLocked 创建深拷贝，必须在持锁状态下调用
// 广播走 Hub 的主循环异步序列化，不能共享内部映射
func (st *StateTracker) snapshotLocked() CellState {
	newState := CellState{
		SimTime: st.state.SimTime,
		Orders:  make(map[string]OrderState, len(st.state.Orders)),
		AGVs:    make(map[int]AGVView, len(st.state.AGVs)),
	}
	for id, o := range st.state.Orders {
		newState.Orders[id] = o
	}
	for id, a := range st.state.AGVs {
		newState.AGVs[id] = a
	}
	return newState
}
