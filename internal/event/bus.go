package event

import (
	"sync"

	"fmc-sim/internal/types"
)

// EventType 定义事件的类型
type EventType string

// 定义所有仿真事件类型
const (
	SimulationStarted EventType = "SimulationStarted" // 仿真开始
	SimulationStopped EventType = "SimulationStopped" // 仿真结束
	OrderReleased     EventType = "OrderReleased"     // 订单下达进入工位队列
	OrderCompleted    EventType = "OrderCompleted"    // 订单装配完成
	OrderRejected     EventType = "OrderRejected"     // 订单被拒绝（不会再完成）
	TaskAssigned      EventType = "TaskAssigned"      // 运输任务分派给某台 AGV
	TaskCompleted     EventType = "TaskCompleted"     // 运输任务送达
	AGVStateChanged   EventType = "AGVStateChanged"   // AGV 状态机发生转移
)

// Event 结构体定义了事件的数据负载
// Time 为仿真时钟分钟数，供事件日志写入方按时间排序
type Event struct {
	Type        EventType          // 事件类型
	Time        int                // 事件发生的仿真时间（分钟）
	OrderID     string             // 关联的订单 ID（订单相关事件）
	Order       *types.Order       // 完整的订单数据（订单相关事件）
	AGVID       int                // 关联的 AGV 编号（运输相关事件），-1 表示无
	State       string             // AGV 的新状态（仅 AGVStateChanged）
	ComponentID string             // 运输的组件 ID（仅运输相关事件）
	Reason      types.RejectReason // 拒绝原因（仅 OrderRejected）
	Err         error              // 错误信息（仅失败事件）
}

// Handler 是事件处理函数的签名
type Handler func(e Event)

// Bus 是一个简单的内存事件总线
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler // 存储事件类型到多个处理函数的映射
}

// NewBus 创建一个新的事件总线实例
func NewBus() *Bus {
	return &Bus{
		handlers: make(map[EventType][]Handler),
	}
}

// Subscribe 订阅一个特定类型的事件
func (b *Bus) Subscribe(eventType EventType, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventType] = append(b.handlers[eventType], handler)
}

// SubscribeAll 对每一种仿真事件类型都注册同一个处理器
// 事件日志写入方用它获得完整的时间线
func (b *Bus) SubscribeAll(handler Handler) {
	all := []EventType{
		SimulationStarted, SimulationStopped,
		OrderReleased, OrderCompleted, OrderRejected,
		TaskAssigned, TaskCompleted, AGVStateChanged,
	}
	for _, t := range all {
		b.Subscribe(t, handler)
	}
}

// Publish 发布一个事件，所有订阅了该事件类型的处理器都将被调用
func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if handlers, ok := b.handlers[e.Type]; ok {
		// 遍历所有处理器并异步执行
		// 使用 goroutine 避免单个处理器的阻塞影响其他处理器
		for _, handler := range handlers {
			go handler(e)
		}
	}
}
