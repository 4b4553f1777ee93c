package fsm

import (
	"fmt"
	"sync"
)

// State 定义状态类型
type State string

// Event 定义事件类型
type Event string

// AGV 运输循环的六个状态
const (
	StateIdle        State = "IDLE"         // 空闲，等待任务
	StateToWarehouse State = "TO_WAREHOUSE" // 前往仓库
	StatePicking     State = "PICKING"      // 取货
	StateToStation   State = "TO_STATION"   // 前往装配工位
	StateDropping    State = "DROPPING"     // 卸货
	StateReturning   State = "RETURNING"    // 返回停车位
)

// ControlCenter 生命周期的四个状态
const (
	StateNotStarted State = "NOT_STARTED"
	StateRunning    State = "RUNNING"
	StateStopping   State = "STOPPING"
	StateStopped    State = "STOPPED"
)

const (
	EventDispatch Event = "DISPATCH" // 接到任务，离开 IDLE
	EventArrive   Event = "ARRIVE"   // 到达仓库，开始取货
	EventLoaded   Event = "LOADED"   // 取货完成，驶向工位
	EventDock     Event = "DOCK"     // 到达工位，开始卸货
	EventUnloaded Event = "UNLOADED" // 卸货完成，返程
	EventParked   Event = "PARKED"   // 返回停车位，重新空闲

	EventStart    Event = "START"
	EventShutdown Event = "SHUTDOWN"
	EventHalted   Event = "HALTED"
)

// FSM 有限状态机
// 转移表之外的任何状态变化都是非法的，Fire 会返回错误
type FSM struct {
	Current State
	mu      sync.Mutex
	// transitions 定义状态转移表: CurrentState -> Event -> NextState
	transitions map[State]map[Event]State
	// callbacks 定义进入某状态后的回调: State -> func()
	callbacks map[State]func(targetID string)
	TargetID  string // 关联的目标对象 ID（如 AGV 编号）
}

// NewAGVCycle 构造 AGV 运输循环状态机
// 唯一允许的循环：IDLE → TO_WAREHOUSE → PICKING → TO_STATION → DROPPING → RETURNING → IDLE
func NewAGVCycle(targetID string) *FSM {
	f := newFSM(targetID, StateIdle)
	f.addTransition(StateIdle, EventDispatch, StateToWarehouse)
	f.addTransition(StateToWarehouse, EventArrive, StatePicking)
	f.addTransition(StatePicking, EventLoaded, StateToStation)
	f.addTransition(StateToStation, EventDock, StateDropping)
	f.addTransition(StateDropping, EventUnloaded, StateReturning)
	f.addTransition(StateReturning, EventParked, StateIdle)
	return f
}

// NewLifecycle 构造控制中心生命周期状态机
// NOT_STARTED → RUNNING → STOPPING → STOPPED
func NewLifecycle(targetID string) *FSM {
	f := newFSM(targetID, StateNotStarted)
	f.addTransition(StateNotStarted, EventStart, StateRunning)
	f.addTransition(StateRunning, EventShutdown, StateStopping)
	f.addTransition(StateStopping, EventHalted, StateStopped)
	return f
}

func newFSM(targetID string, initial State) *FSM {
	return &FSM{
		Current:     initial,
		TargetID:    targetID,
		transitions: make(map[State]map[Event]State),
		callbacks:   make(map[State]func(string)),
	}
}

func (f *FSM) addTransition(from State, event Event, to State) {
	if _, ok := f.transitions[from]; !ok {
		f.transitions[from] = make(map[Event]State)
	}
	f.transitions[from][event] = to
}

// RegisterCallback 注册进入某状态时的回调
func (f *FSM) RegisterCallback(state State, callback func(targetID string)) {
	f.callbacks[state] = callback
}

// Fire 触发事件
func (f *FSM) Fire(event Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	// 查找合法的转移
	nextState, ok := f.transitions[f.Current][event]
	if !ok {
		return fmt.Errorf("invalid transition: cannot fire event %s from state %s", event, f.Current)
	}

	f.Current = nextState

	// 触发回调
	// 同步执行；回调中不要再调用 Fire，否则会死锁
	if cb, exists := f.callbacks[nextState]; exists {
		cb(f.TargetID)
	}

	return nil
}

// State 返回当前状态的快照
func (f *FSM) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Current
}
