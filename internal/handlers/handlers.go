package handlers

import (
	"log/slog"

	"fmc-sim/internal/event"
	"fmc-sim/internal/persistence"
	"fmc-sim/internal/web"
)

// RegisterEventHandlers 将所有事件处理器注册到事件总线
// 这是事件驱动架构的核心，将不同的业务关注点（事件日志、UI、审计日志）解耦
func RegisterEventHandlers(bus *event.Bus, st *web.StateTracker, eventLog *persistence.EventLog, logger *slog.Logger) {
	// --- 事件日志处理器 ---
	// 订阅全部事件类型，把完整时间线落盘
	if eventLog != nil {
		bus.SubscribeAll(eventLog.Handler())
	}

	// --- Web UI 处理器 ---
	// 订阅订单下达事件，把订单加入实时视图
	bus.Subscribe(event.OrderReleased, func(e event.Event) {
		st.TrackOrder(e.Order, e.Time)
	})
	// 订阅订单完成事件，更新订单状态
	bus.Subscribe(event.OrderCompleted, func(e event.Event) {
		st.UpdateOrderStatus(e.OrderID, "COMPLETED", e.Order.LeadTime(), e.Time)
	})
	// 订阅订单拒绝事件，更新订单状态
	bus.Subscribe(event.OrderRejected, func(e event.Event) {
		st.UpdateOrderStatus(e.OrderID, "REJECTED", 0, e.Time)
	})
	// 订阅 AGV 状态变更事件，更新车队视图
	bus.Subscribe(event.AGVStateChanged, func(e event.Event) {
		st.UpdateAGV(e.AGVID, e.State, e.ComponentID, e.Time)
	})

	// --- 审计日志处理器 ---
	// 订阅关键业务事件，记录审计日志
	bus.Subscribe(event.OrderRejected, func(e event.Event) {
		logger.Warn("订单被拒绝", "order_id", e.OrderID, "reason", e.Reason, "error", e.Err)
	})
	bus.Subscribe(event.OrderCompleted, func(e event.Event) {
		logger.Info("订单处理成功", "order_id", e.OrderID, "sim_time", e.Time)
	})
}
