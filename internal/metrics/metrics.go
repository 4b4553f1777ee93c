package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// 定义 Prometheus 监控指标
var (
	// OrdersInQueue 仪表盘：工位队列中当前待处理的订单数量
	// 用于监控装配工位的积压情况
	OrdersInQueue = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "station_orders_in_queue",
		Help: "The number of orders currently waiting in the assembly station queue",
	})

	// OrdersReleasedTotal 计数器：控制中心已下达的订单总数
	OrdersReleasedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "control_orders_released_total",
		Help: "The total number of orders released to the assembly station",
	})

	// OrdersCompletedTotal 计数器：完成的订单总数
	OrdersCompletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "station_orders_completed_total",
		Help: "The total number of completed orders",
	})

	// OrdersRejectedTotal 计数器：被拒绝的订单总数，按原因分类
	OrdersRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "station_orders_rejected_total",
		Help: "The total number of rejected orders",
	}, []string{"reason"})

	// OrderLeadTimeMinutes 直方图：订单制造周期分布（仿真分钟）
	// 用于分析排产策略对交付周期的影响
	OrderLeadTimeMinutes = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "order_lead_time_minutes",
		Help:    "Lead time (release to completion) of completed orders in simulated minutes",
		Buckets: []float64{10, 20, 30, 45, 60, 90, 120, 240, 480},
	})

	// AGVsBusy 仪表盘：当前不处于 IDLE 的 AGV 数量
	AGVsBusy = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fleet_agvs_busy",
		Help: "The number of AGVs currently executing a transport cycle",
	})

	// TransportTasksTotal 计数器：AGV 完成的运输任务总数
	TransportTasksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fleet_transport_tasks_total",
		Help: "The total number of completed AGV transport tasks",
	})
)
