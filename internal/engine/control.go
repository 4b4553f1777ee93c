package engine

import (
	"container/heap"
	"context"
	"log/slog"
	"sync"
	"time"

	"fmc-sim/internal/agv"
	"fmc-sim/internal/event"
	"fmc-sim/internal/fsm"
	"fmc-sim/internal/metrics"
	"fmc-sim/internal/policy"
	"fmc-sim/internal/simclock"
	"fmc-sim/internal/station"
	"fmc-sim/internal/types"
	"fmc-sim/internal/util"
)

// ControlCenter 是顶层调度器
// 它是虚拟时钟唯一的驱动者：下达循环每推进一个仿真分钟，就按当前
// 策略把已到期的订单送入工位队列；同时消费工位的完成通知做 KPI 汇总。
// 仓库、产品目录、车队与工位在构造时一次性注入，所有权明确，
// 没有任何组件重复持有
type ControlCenter struct {
	clock     *simclock.Clock
	fleet     *agv.Fleet
	station   *station.Station
	bus       *event.Bus
	pol       policy.Policy
	lifecycle *fsm.FSM
	logger    *slog.Logger

	simDurationMinutes int
	tickInterval       time.Duration // 每仿真分钟的真实间隔，0 表示全速

	mu          sync.Mutex
	pending     releaseHeap    // 尚未到期的订单
	due         []*types.Order // 已到期、等待策略排序下达的订单
	totalOrders int
	released    int
	completed   int // 已观察到的完成数，用于判定全部订单到达终态
	rejected    int // 已观察到的拒绝数，同上
	leadTimes   map[string]int

	cancel      context.CancelFunc
	wg          sync.WaitGroup
	releaseDone chan struct{} // 下达循环退出时关闭
	stopped     chan struct{} // Stop 完成（含 KPI 定稿）时关闭
	stopOnce    sync.Once

	report *KPIReport // Stop 定稿后只读
}

// Options 控制中心的可调参数
type Options struct {
	SimDurationMinutes int
	TickInterval       time.Duration
}

// New 创建控制中心
func New(clock *simclock.Clock, fleet *agv.Fleet, st *station.Station, bus *event.Bus,
	pol policy.Policy, opts Options, logger *slog.Logger) *ControlCenter {
	c := &ControlCenter{
		clock:              clock,
		fleet:              fleet,
		station:            st,
		bus:                bus,
		pol:                pol,
		lifecycle:          fsm.NewLifecycle("control-center"),
		simDurationMinutes: opts.SimDurationMinutes,
		tickInterval:       opts.TickInterval,
		leadTimes:          make(map[string]int),
		releaseDone:        make(chan struct{}),
		stopped:            make(chan struct{}),
		logger:             logger.With("component", "control_center"),
	}
	// 拒绝是订单的终态之一，和完成一起决定下达循环能否提前结束
	bus.Subscribe(event.OrderRejected, func(e event.Event) {
		c.mu.Lock()
		c.rejected++
		c.mu.Unlock()
	})
	return c
}

// LoadOrders 装入全部待下达的订单
// 必须在 Start 之前调用；仿真运行中注入订单请使用 AddOrder
func (c *ControlCenter) LoadOrders(orders []*types.Order) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, o := range orders {
		heap.Push(&c.pending, &releaseItem{Order: o})
		c.totalOrders++
	}
}

// AddOrder 在仿真运行中注入一张订单
func (c *ControlCenter) AddOrder(o *types.Order) {
	c.mu.Lock()
	defer c.mu.Unlock()
	o.Sequence = c.totalOrders
	heap.Push(&c.pending, &releaseItem{Order: o})
	c.totalOrders++
}

// State 返回生命周期状态的快照
func (c *ControlCenter) State() fsm.State {
	return c.lifecycle.State()
}

// Start 启动整个仿真：车队、工位、下达循环、KPI 汇总循环
func (c *ControlCenter) Start(ctx context.Context) error {
	if err := c.lifecycle.Fire(fsm.EventStart); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	c.bus.Publish(event.Event{Type: event.SimulationStarted, Time: c.clock.Now(), AGVID: -1})
	c.logger.Info("仿真开始", "policy", c.pol.Name(),
		"fleet_size", c.fleet.Size(), "duration_minutes", c.simDurationMinutes)

	c.fleet.Start(runCtx)
	c.station.Start(runCtx)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.releaseLoop(runCtx)
	}()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.aggregateCompletions()
	}()

	// 下达循环自然结束（仿真时长耗尽）时触发停机
	go func() {
		<-c.releaseDone
		c.Stop()
	}()
	return nil
}

// Wait 阻塞到仿真完全停止（KPI 已定稿）
func (c *ControlCenter) Wait() {
	<-c.stopped
}

// releaseLoop 驱动虚拟时钟并按策略下达到期订单
func (c *ControlCenter) releaseLoop(ctx context.Context) {
	defer close(c.releaseDone)

	for {
		c.releaseDue()

		if ctx.Err() != nil {
			return
		}
		if c.allOrdersTerminal() {
			c.logger.Info("全部订单已到达终态, 提前结束", "sim_time", c.clock.Now())
			return
		}
		if c.clock.Now() >= c.simDurationMinutes {
			c.logger.Info("仿真时长耗尽", "sim_time", c.clock.Now())
			return
		}

		if c.tickInterval > 0 {
			select {
			case <-time.After(c.tickInterval):
			case <-ctx.Done():
				return
			}
		}
		c.clock.Advance(1)
	}
}

// allOrdersTerminal 判断已装入的订单是否全部到达终态（完成或拒绝）
// 运行中注入的订单同样计入 totalOrders，不会被提前结束遗漏
func (c *ControlCenter) allOrdersTerminal() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.totalOrders > 0 && c.completed+c.rejected >= c.totalOrders
}

// releaseDue 把已到期的订单从堆中取出，按策略逐张下达
func (c *ControlCenter) releaseDue() {
	now := c.clock.Now()

	c.mu.Lock()
	for c.pending.Len() > 0 && c.pending[0].Order.ReleaseTimeMinutes <= now {
		item := heap.Pop(&c.pending).(*releaseItem)
		c.due = append(c.due, item.Order)
	}
	for len(c.due) > 0 {
		i := c.pol.Next(c.due, now)
		o := c.due[i]
		c.due = append(c.due[:i], c.due[i+1:]...)
		c.released++
		c.mu.Unlock()
		c.release(o, now)
		c.mu.Lock()
	}
	c.mu.Unlock()
}

// release 为订单注入追踪 ID 并送入工位队列
func (c *ControlCenter) release(o *types.Order, now int) {
	o.TraceID = util.NewTraceID()
	metrics.OrdersReleasedTotal.Inc()
	c.bus.Publish(event.Event{
		Type:    event.OrderReleased,
		Time:    now,
		OrderID: o.ID,
		Order:   o,
		AGVID:   -1,
	})
	c.logger.Info("下达订单", "order_id", o.ID, "product_id", o.ProductID,
		"priority", o.Priority, "trace_id", o.TraceID, "sim_time", now)
	c.station.Submit(o)
}

// aggregateCompletions 消费工位的完成通知并记录制造周期
// 工位停机汇合后通道关闭，本循环随之退出
func (c *ControlCenter) aggregateCompletions() {
	for o := range c.station.Completions() {
		lead := o.LeadTime()
		c.mu.Lock()
		c.leadTimes[o.ID] = lead
		c.completed++
		c.mu.Unlock()

		metrics.OrderLeadTimeMinutes.Observe(float64(lead))
		c.logger.Info("订单完成", "order_id", o.ID, "lead_time_minutes", lead,
			"completion_time", o.CompletionTimeMinutes, "trace_id", o.TraceID)
	}
}

// Stop 协同停机：唤醒所有阻塞等待、逐级汇合各 worker，最后定稿 KPI
// 可以在任何时刻安全调用（含仿真运行中），只会执行一次
func (c *ControlCenter) Stop() {
	c.stopOnce.Do(func() {
		_ = c.lifecycle.Fire(fsm.EventShutdown)
		c.logger.Info("开始协同停机", "sim_time", c.clock.Now())

		// 取消上下文并停止时钟：没有任何协程会继续停在定时等待上
		if c.cancel != nil {
			c.cancel()
		}
		c.clock.Stop()

		// 工位先停：在途订单按停机策略收尾，队列余单被显式拒绝
		c.station.Stop()
		c.station.Join()

		// 车队收尾：在途任务跑完当前循环后退出
		c.fleet.Stop()

		// 汇合下达循环与 KPI 汇总循环
		c.wg.Wait()

		c.finalizeKPI()
		c.bus.Publish(event.Event{Type: event.SimulationStopped, Time: c.clock.Now(), AGVID: -1})
		_ = c.lifecycle.Fire(fsm.EventHalted)
		c.logger.Info("仿真已停止", "elapsed_minutes", c.report.ElapsedMinutes,
			"completed", c.report.OrdersCompleted, "rejected", c.report.OrdersRejected)
		close(c.stopped)
	})
}

// finalizeKPI 在所有 worker 汇合之后计算最终绩效指标
func (c *ControlCenter) finalizeKPI() {
	elapsed := c.clock.Now()
	stationBusy, completed, rejected := c.station.Stats()

	c.mu.Lock()
	defer c.mu.Unlock()

	report := &KPIReport{
		Policy:             c.pol.Name(),
		ElapsedMinutes:     elapsed,
		OrdersReleased:     c.released,
		OrdersCompleted:    completed,
		OrdersRejected:     rejected,
		StationBusyMinutes: stationBusy,
		OrderLeadTimes:     make(map[string]int, len(c.leadTimes)),
		AGVBusyMinutes:     make(map[int]int),
		AGVUtilization:     make(map[int]float64),
	}

	var leadSum int
	for id, lt := range c.leadTimes {
		report.OrderLeadTimes[id] = lt
		leadSum += lt
	}
	if len(c.leadTimes) > 0 {
		report.AvgLeadTimeMinutes = float64(leadSum) / float64(len(c.leadTimes))
	}

	if elapsed > 0 {
		// 停机快进会把整段操作时长计入忙时而时钟已冻结，
		// 忙时可能超出经过时间：利用率按 1 封顶
		report.StationUtilization = clampUtilization(stationBusy, elapsed)
		report.ThroughputPerHour = float64(completed) / (float64(elapsed) / 60.0)
	}

	var utilSum float64
	for _, v := range c.fleet.Vehicles() {
		_, busy := v.Stats()
		report.AGVBusyMinutes[v.ID()] = busy
		if elapsed > 0 {
			u := clampUtilization(busy, elapsed)
			report.AGVUtilization[v.ID()] = u
			utilSum += u
		}
	}
	if c.fleet.Size() > 0 {
		report.AvgAGVUtilization = utilSum / float64(c.fleet.Size())
	}

	c.report = report
}

func clampUtilization(busy, elapsed int) float64 {
	u := float64(busy) / float64(elapsed)
	if u > 1 {
		return 1
	}
	return u
}

// Report 返回定稿后的 KPI 报表；仿真尚未停止时返回 nil
func (c *ControlCenter) Report() *KPIReport {
	select {
	case <-c.stopped:
		return c.report
	default:
		return nil
	}
}
