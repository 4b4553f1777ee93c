package agv

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"fmc-sim/internal/config"
	"fmc-sim/internal/event"
	"fmc-sim/internal/fsm"
	"fmc-sim/internal/metrics"
	"fmc-sim/internal/simclock"
	"fmc-sim/internal/types"
)

// AGV 是一台自动导引运输车，作为独立的 worker 协程运行
// 状态与任务字段由本车独占：外部只能通过 AssignTask 协议注入任务，
// 以及在本车的锁下做只读快照，任何组件不得直接改写
type AGV struct {
	id     int
	cycle  *fsm.FSM
	timing config.AGVTiming
	clock  *simclock.Clock
	bus    *event.Bus
	logger *slog.Logger

	mu       sync.Mutex
	cond     *sync.Cond
	task     types.AGVTask
	taskDone chan struct{} // 分派时创建，整个循环结束时关闭
	running  bool

	// 统计字段，同样受 mu 保护
	totalOperations int
	busyMinutes     int
}

// New 创建一台编号为 id 的 AGV
func New(id int, timing config.AGVTiming, clock *simclock.Clock, bus *event.Bus, logger *slog.Logger) *AGV {
	a := &AGV{
		id:     id,
		cycle:  fsm.NewAGVCycle(fmt.Sprintf("AGV-%d", id)),
		timing: timing,
		clock:  clock,
		bus:    bus,
		logger: logger.With("component", "agv", "agv_id", id),
	}
	a.cond = sync.NewCond(&a.mu)
	return a
}

// ID 返回车辆编号
func (a *AGV) ID() int { return a.id }

// Start 启动本车的执行循环
// wg 由车队持有，用于停机时的统一汇合
func (a *AGV) Start(ctx context.Context, wg *sync.WaitGroup) {
	a.mu.Lock()
	a.running = true
	a.mu.Unlock()

	wg.Add(1)
	go func() {
		defer wg.Done()
		a.run(ctx)
	}()
}

// Stop 通知本车停机
// 停机策略是完成当前循环后退出：正在执行的任务会照常走完全部阶段
// 并发出完成信号，只有空闲等待中的车辆立即退出
func (a *AGV) Stop() {
	a.mu.Lock()
	a.running = false
	a.mu.Unlock()
	a.cond.Broadcast()
}

// AssignTask 尝试把一次运输任务分派给本车
// 仅当本车处于 IDLE 且无任务时才会成功；否则不产生任何副作用，
// 调用方应当换一台车重试。成功时返回任务完成通道，整个运输循环
// （含 RETURNING）结束时该通道被关闭
func (a *AGV) AssignTask(componentID string, quantity int, destination types.Destination) (<-chan struct{}, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.running || !a.task.Empty() || a.cycle.State() != fsm.StateIdle {
		return nil, false
	}

	a.task = types.AGVTask{
		ComponentID: componentID,
		Quantity:    quantity,
		Destination: destination,
	}
	a.taskDone = make(chan struct{})
	a.cond.Signal() // 唤醒执行循环
	return a.taskDone, true
}

// run 是本车的执行循环：每次迭代完成一个任务的完整运输协议
func (a *AGV) run(ctx context.Context) {
	for {
		a.mu.Lock()
		// 等待任务分派或停机信号
		for a.running && a.task.Empty() {
			a.cond.Wait()
		}
		if a.task.Empty() {
			// 停机且无在途任务
			a.mu.Unlock()
			return
		}
		task := a.task
		done := a.taskDone
		a.mu.Unlock()

		a.executeCycle(ctx, task)

		a.mu.Lock()
		a.totalOperations++
		a.busyMinutes += a.timing.CycleMinutes()
		a.task = types.AGVTask{}
		a.taskDone = nil
		running := a.running
		a.mu.Unlock()

		metrics.AGVsBusy.Dec()
		metrics.TransportTasksTotal.Inc()
		a.bus.Publish(event.Event{
			Type:        event.TaskCompleted,
			Time:        a.clock.Now(),
			AGVID:       a.id,
			ComponentID: task.ComponentID,
		})
		close(done)

		if !running {
			return
		}
	}
}

// executeCycle 依次经历运输协议的五个阶段
// 每个阶段在虚拟时钟上挂起配置的时长；时钟停止或 ctx 取消后
// 剩余阶段不再等待，但状态转移照常发生，保证循环总是跑完
func (a *AGV) executeCycle(ctx context.Context, task types.AGVTask) {
	metrics.AGVsBusy.Inc()
	a.logger.Info("开始运输任务",
		"component_id", task.ComponentID, "quantity", task.Quantity, "destination", task.Destination)

	phases := []struct {
		ev      fsm.Event
		minutes int
	}{
		{fsm.EventDispatch, a.timing.ToWarehouseMinutes},
		{fsm.EventArrive, a.timing.PickingMinutes},
		{fsm.EventLoaded, a.timing.ToStationMinutes},
		{fsm.EventDock, a.timing.DroppingMinutes},
		{fsm.EventUnloaded, a.timing.ReturningMinutes},
	}

	waiting := true
	for _, phase := range phases {
		a.transition(phase.ev)
		if !waiting {
			continue
		}
		if err := a.clock.Sleep(ctx, phase.minutes); err != nil {
			// 停机：快进剩余阶段
			waiting = false
		}
	}
	a.transition(fsm.EventParked)

	a.logger.Info("运输任务完成", "component_id", task.ComponentID, "sim_time", a.clock.Now())
}

// transition 触发一次状态机转移并发布状态变更事件
func (a *AGV) transition(ev fsm.Event) {
	if err := a.cycle.Fire(ev); err != nil {
		// 转移表保证了循环内的事件总是合法的，走到这里属于编程错误
		a.logger.Error("非法的状态转移", "event", ev, "error", err)
		return
	}
	a.bus.Publish(event.Event{
		Type:  event.AGVStateChanged,
		Time:  a.clock.Now(),
		AGVID: a.id,
		State: string(a.cycle.State()),
	})
}

// IsIdle 判断本车是否空闲（IDLE 且无任务），锁保护的快照
func (a *AGV) IsIdle() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.task.Empty() && a.cycle.State() == fsm.StateIdle
}

// State 返回当前状态的快照
func (a *AGV) State() fsm.State {
	return a.cycle.State()
}

// CurrentTask 返回当前任务的快照
func (a *AGV) CurrentTask() types.AGVTask {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.task
}

// Stats 返回累计完成的任务数和忙时（分钟）
func (a *AGV) Stats() (totalOperations, busyMinutes int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.totalOperations, a.busyMinutes
}
