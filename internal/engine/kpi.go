package engine

// KPIReport 是仿真结束时控制中心汇总出的绩效指标快照
// 报表写入方（internal/persistence）只消费这份数据，不做任何计算
type KPIReport struct {
	Policy             string          `json:"policy"`               // 使用的下达策略
	ElapsedMinutes     int             `json:"elapsed_minutes"`      // 仿真经过时间（分钟）
	OrdersReleased     int             `json:"orders_released"`      // 已下达订单数
	OrdersCompleted    int             `json:"orders_completed"`     // 完成订单数
	OrdersRejected     int             `json:"orders_rejected"`      // 被拒绝订单数
	AvgLeadTimeMinutes float64         `json:"avg_lead_time"`        // 平均制造周期
	StationBusyMinutes int             `json:"station_busy_minutes"` // 工位累计忙时
	StationUtilization float64         `json:"station_utilization"`  // 工位利用率 = 忙时 / 经过时间
	ThroughputPerHour  float64         `json:"throughput_per_hour"`  // 产出率 = 完成数 / 经过小时数
	AvgAGVUtilization  float64         `json:"avg_agv_utilization"`  // 车队平均利用率
	OrderLeadTimes     map[string]int  `json:"order_lead_times"`     // 每张订单的制造周期
	AGVBusyMinutes     map[int]int     `json:"agv_busy_minutes"`     // 每台 AGV 的累计忙时
	AGVUtilization     map[int]float64 `json:"agv_utilization"`      // 每台 AGV 的利用率
}
