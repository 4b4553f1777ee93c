package engine

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"fmc-sim/internal/agv"
	"fmc-sim/internal/config"
	"fmc-sim/internal/event"
	"fmc-sim/internal/fsm"
	"fmc-sim/internal/policy"
	"fmc-sim/internal/simclock"
	"fmc-sim/internal/station"
	"fmc-sim/internal/types"
	"fmc-sim/internal/warehouse"
)

var testTiming = config.AGVTiming{
	ToWarehouseMinutes: 2,
	PickingMinutes:     1,
	ToStationMinutes:   3,
	DroppingMinutes:    1,
	ReturningMinutes:   2,
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

// newTestSim 装配一个完整的仿真：控制中心作为时钟唯一驱动者
func newTestSim(t *testing.T, catalog map[string]*types.Product, inventory map[string]int,
	orders []*types.Order, durationMinutes int) (*ControlCenter, *agv.Fleet) {
	t.Helper()
	logger := testLogger()
	clock := simclock.New()
	bus := event.NewBus()

	wh := warehouse.New(logger)
	for id, qty := range inventory {
		wh.AddComponent(id, qty)
	}
	fleet := agv.NewFleet(10, testTiming, clock, bus, logger)
	st := station.New(wh, fleet, catalog, clock, bus, station.Options{
		SetupMinutes:        5,
		MaxReserveAttempts:  3,
		RetryBackoffMinutes: 2,
	}, logger)

	cc := New(clock, fleet, st, bus, policy.FIFO{}, Options{
		SimDurationMinutes: durationMinutes,
		TickInterval:       time.Millisecond,
	}, logger)
	cc.LoadOrders(orders)
	return cc, fleet
}

// TestKPIScenario 验证 KPI 正确性：基础装配 20 + 换型 5 的单张订单
// 在 60 分钟仿真内完成于 >= 25 分钟处，工位忙时恰为 25，
// 产出率为 1 订单/小时
func TestKPIScenario(t *testing.T) {
	catalog := map[string]*types.Product{
		"GEARBOX_A": {
			ID:                  "GEARBOX_A",
			BOM:                 map[string]int{"SHAFT": 2, "GEAR": 6},
			BaseAssemblyMinutes: 20,
		},
	}
	orders := []*types.Order{{
		ID:                    "ORD-001",
		ProductID:             "GEARBOX_A",
		ReleaseTimeMinutes:    0,
		DueTimeMinutes:        -1,
		CompletionTimeMinutes: -1,
	}}
	cc, _ := newTestSim(t, catalog, map[string]int{"SHAFT": 10, "GEAR": 20}, orders, 60)

	if err := cc.Start(context.Background()); err != nil {
		t.Fatalf("启动失败: %v", err)
	}

	done := make(chan struct{})
	go func() {
		cc.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(30 * time.Second):
		t.Fatal("仿真未在规定时间内结束")
	}

	report := cc.Report()
	if report == nil {
		t.Fatal("停机后 Report 不应为 nil")
	}
	if report.OrdersCompleted != 1 {
		t.Fatalf("预期完成 1 张订单, 得到 %d", report.OrdersCompleted)
	}
	if report.StationBusyMinutes != 25 {
		t.Errorf("预期工位忙时 25 分钟, 得到 %d", report.StationBusyMinutes)
	}
	// 唯一订单到达终态后下达循环提前结束，经过时间介于完成时刻与仿真时长之间
	if report.ElapsedMinutes < 25 || report.ElapsedMinutes > 60 {
		t.Errorf("经过时间应在 [25,60] 内, 得到 %d", report.ElapsedMinutes)
	}
	if report.ThroughputPerHour < 1.0 {
		t.Errorf("60 分钟内完成 1 张订单, 产出率应 >= 1 订单/小时, 得到 %.2f", report.ThroughputPerHour)
	}
	if lead, ok := report.OrderLeadTimes["ORD-001"]; !ok || lead < 25 {
		t.Errorf("制造周期应 >= 25 分钟, 得到 %d", lead)
	}
	if report.StationUtilization <= 0 || report.StationUtilization > 1 {
		t.Errorf("工位利用率应在 (0,1] 内, 得到 %.2f", report.StationUtilization)
	}
	if report.AvgAGVUtilization <= 0 {
		t.Error("有运输发生时车队平均利用率应为正")
	}
}

// TestEndsWhenAllOrdersTerminal 验证提前结束：仿真时长远大于实际需要时，
// 全部订单到达终态后下达循环立即退出，不会空转到时长耗尽
func TestEndsWhenAllOrdersTerminal(t *testing.T) {
	catalog := map[string]*types.Product{
		"GEARBOX_A": {
			ID:                  "GEARBOX_A",
			BOM:                 map[string]int{"SHAFT": 2, "GEAR": 6},
			BaseAssemblyMinutes: 20,
		},
	}
	orders := []*types.Order{{
		ID:                    "ORD-001",
		ProductID:             "GEARBOX_A",
		ReleaseTimeMinutes:    0,
		DueTimeMinutes:        -1,
		CompletionTimeMinutes: -1,
	}}
	cc, _ := newTestSim(t, catalog, map[string]int{"SHAFT": 10, "GEAR": 20}, orders, 100000)

	if err := cc.Start(context.Background()); err != nil {
		t.Fatalf("启动失败: %v", err)
	}

	done := make(chan struct{})
	go func() {
		cc.Wait()
		close(done)
	}()
	// 订单在约 40 个仿真分钟内完成；空转到 100000 分钟需要 100 秒以上
	select {
	case <-done:
	case <-time.After(30 * time.Second):
		t.Fatal("全部订单到达终态后仿真未提前结束")
	}

	if cc.State() != fsm.StateStopped {
		t.Errorf("预期生命周期 STOPPED, 得到 %s", cc.State())
	}
	report := cc.Report()
	if report.OrdersCompleted != 1 {
		t.Errorf("预期完成 1 张订单, 得到 %d", report.OrdersCompleted)
	}
	if report.ElapsedMinutes >= 100000 {
		t.Errorf("经过时间应远小于仿真时长, 得到 %d", report.ElapsedMinutes)
	}
}

// TestEndsWhenAllOrdersRejected 验证拒绝同样计入终态
func TestEndsWhenAllOrdersRejected(t *testing.T) {
	catalog := map[string]*types.Product{}
	orders := []*types.Order{{
		ID:                    "ORD-001",
		ProductID:             "NO_SUCH_PRODUCT",
		ReleaseTimeMinutes:    0,
		DueTimeMinutes:        -1,
		CompletionTimeMinutes: -1,
	}}
	cc, _ := newTestSim(t, catalog, nil, orders, 100000)

	if err := cc.Start(context.Background()); err != nil {
		t.Fatalf("启动失败: %v", err)
	}

	done := make(chan struct{})
	go func() {
		cc.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(30 * time.Second):
		t.Fatal("全部订单被拒绝后仿真未提前结束")
	}

	report := cc.Report()
	if report.OrdersRejected != 1 {
		t.Errorf("预期拒绝 1 张订单, 得到 %d", report.OrdersRejected)
	}
	if report.ElapsedMinutes >= 100000 {
		t.Errorf("经过时间应远小于仿真时长, 得到 %d", report.ElapsedMinutes)
	}
}

// TestShutdownMidFlight 验证停机场景：仿真运行中发出 Stop，
// 所有 worker 汇合退出，没有 AGV 协程滞留，车辆全部回到 IDLE
func TestShutdownMidFlight(t *testing.T) {
	catalog := map[string]*types.Product{
		"MOTOR_M2": {
			ID:                  "MOTOR_M2",
			BOM:                 map[string]int{"STATOR": 1, "ROTOR": 1, "BEARING": 2},
			BaseAssemblyMinutes: 30,
		},
	}
	orders := []*types.Order{{
		ID:                    "ORD-001",
		ProductID:             "MOTOR_M2",
		ReleaseTimeMinutes:    0,
		DueTimeMinutes:        -1,
		CompletionTimeMinutes: -1,
	}}
	cc, fleet := newTestSim(t, catalog,
		map[string]int{"STATOR": 5, "ROTOR": 5, "BEARING": 10}, orders, 100000)

	if err := cc.Start(context.Background()); err != nil {
		t.Fatalf("启动失败: %v", err)
	}

	// 等运输在途后停机
	time.Sleep(10 * time.Millisecond)

	stopped := make(chan struct{})
	go func() {
		cc.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(30 * time.Second):
		t.Fatal("Stop 未在规定时间内返回, 可能有 worker 滞留")
	}

	if cc.State() != fsm.StateStopped {
		t.Errorf("预期生命周期 STOPPED, 得到 %s", cc.State())
	}
	// 在途任务跑完当前循环后退出：所有车辆都应回到 IDLE 且无任务
	for _, v := range fleet.Vehicles() {
		if v.State() != fsm.StateIdle {
			t.Errorf("AGV-%d 停机后应处于 IDLE, 得到 %s", v.ID(), v.State())
		}
		if !v.CurrentTask().Empty() {
			t.Errorf("AGV-%d 停机后不应持有任务", v.ID())
		}
	}
	report := cc.Report()
	if report == nil {
		t.Fatal("停机后应有定稿的 KPI 报表")
	}
	// 快进完成的装配把整段操作时长计入忙时，利用率仍须封顶在 1
	if report.StationUtilization > 1 {
		t.Errorf("工位利用率不应超过 1, 得到 %.2f", report.StationUtilization)
	}
	for id, u := range report.AGVUtilization {
		if u > 1 {
			t.Errorf("AGV-%d 利用率不应超过 1, 得到 %.2f", id, u)
		}
	}
}

func TestLifecycleGuardsDoubleStart(t *testing.T) {
	cc, _ := newTestSim(t, map[string]*types.Product{}, nil, nil, 5)
	if err := cc.Start(context.Background()); err != nil {
		t.Fatalf("首次启动失败: %v", err)
	}
	if err := cc.Start(context.Background()); err == nil {
		t.Error("重复启动应当报错")
	}
	cc.Stop()
	cc.Wait()
}
