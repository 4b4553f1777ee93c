package persistence

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"fmc-sim/internal/engine"
)

// WriteKPIReport 把控制中心定稿的 KPI 快照渲染为文本报表并写盘
// 报表只消费 ControlCenter 已经拥有的数据，不做任何重新计算
func WriteKPIReport(path string, r *engine.KPIReport) error {
	var b strings.Builder

	b.WriteString("=== 柔性制造单元 仿真 KPI 报表 ===\n\n")
	fmt.Fprintf(&b, "下达策略:       %s\n", r.Policy)
	fmt.Fprintf(&b, "仿真经过时间:   %d 分钟\n", r.ElapsedMinutes)
	fmt.Fprintf(&b, "下达订单数:     %d\n", r.OrdersReleased)
	fmt.Fprintf(&b, "完成订单数:     %d\n", r.OrdersCompleted)
	fmt.Fprintf(&b, "拒绝订单数:     %d\n", r.OrdersRejected)
	fmt.Fprintf(&b, "平均制造周期:   %.2f 分钟\n", r.AvgLeadTimeMinutes)
	fmt.Fprintf(&b, "工位忙时:       %d 分钟\n", r.StationBusyMinutes)
	fmt.Fprintf(&b, "工位利用率:     %.2f%%\n", r.StationUtilization*100)
	fmt.Fprintf(&b, "产出率:         %.2f 订单/小时\n", r.ThroughputPerHour)
	fmt.Fprintf(&b, "车队平均利用率: %.2f%%\n", r.AvgAGVUtilization*100)

	b.WriteString("\n--- 各订单制造周期 ---\n")
	orderIDs := make([]string, 0, len(r.OrderLeadTimes))
	for id := range r.OrderLeadTimes {
		orderIDs = append(orderIDs, id)
	}
	sort.Strings(orderIDs)
	for _, id := range orderIDs {
		fmt.Fprintf(&b, "%-12s %d 分钟\n", id, r.OrderLeadTimes[id])
	}

	b.WriteString("\n--- 各 AGV 利用率 ---\n")
	agvIDs := make([]int, 0, len(r.AGVUtilization))
	for id := range r.AGVUtilization {
		agvIDs = append(agvIDs, id)
	}
	sort.Ints(agvIDs)
	for _, id := range agvIDs {
		fmt.Fprintf(&b, "AGV-%-3d 忙时 %d 分钟, 利用率 %.2f%%\n",
			id, r.AGVBusyMinutes[id], r.AGVUtilization[id]*100)
	}

	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		return fmt.Errorf("写入 KPI 报表失败: %w", err)
	}
	return nil
}
