package station

import (
	"context"
	"log/slog"
	"sync"

	"fmc-sim/internal/agv"
	"fmc-sim/internal/event"
	"fmc-sim/internal/metrics"
	"fmc-sim/internal/simclock"
	"fmc-sim/internal/types"
	"fmc-sim/internal/warehouse"
)

// Station 是单服务台装配工位
// 它维护一个订单队列，由唯一的处理循环逐张消费：解析物料清单、
// 原子预定库存、向空闲 AGV 分派运输任务、等待全部送达、执行装配，
// 最后成品入库并通知控制中心。任一时刻最多只有一张订单处于装配中
type Station struct {
	warehouse *warehouse.Warehouse
	fleet     *agv.Fleet
	catalog   map[string]*types.Product
	clock     *simclock.Clock
	bus       *event.Bus
	logger    *slog.Logger

	mu         sync.Mutex
	cond       *sync.Cond
	queue      []*types.Order
	running    bool
	processing bool // 单服务台约束的可观测标志

	setupMinutes        int // 固定换型时间，叠加到每个产品的基础装配时长上
	maxReserveAttempts  int
	retryBackoffMinutes int
	lastDispatchIdx     int // 轮询分派的起始下标

	busyMinutes     int
	ordersCompleted int
	ordersRejected  int

	completions chan *types.Order // 完成通知，由控制中心消费
	wg          sync.WaitGroup
}

// Options 工位的可调参数
type Options struct {
	SetupMinutes        int // 换型时间
	MaxReserveAttempts  int // 库存不足时的最大预定尝试次数
	RetryBackoffMinutes int // 两次预定尝试之间的退避时长
}

// New 创建装配工位
// warehouse、fleet、catalog 的所有权属于仿真上下文，这里只持有引用
func New(wh *warehouse.Warehouse, fleet *agv.Fleet, catalog map[string]*types.Product,
	clock *simclock.Clock, bus *event.Bus, opts Options, logger *slog.Logger) *Station {
	s := &Station{
		warehouse:           wh,
		fleet:               fleet,
		catalog:             catalog,
		clock:               clock,
		bus:                 bus,
		setupMinutes:        opts.SetupMinutes,
		maxReserveAttempts:  opts.MaxReserveAttempts,
		retryBackoffMinutes: opts.RetryBackoffMinutes,
		completions:         make(chan *types.Order, 128),
		logger:              logger.With("component", "station"),
	}
	if s.maxReserveAttempts < 1 {
		s.maxReserveAttempts = 1
	}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Completions 返回完成通知通道，工位停机汇合后关闭
func (s *Station) Completions() <-chan *types.Order {
	return s.completions
}

// Start 启动处理循环
func (s *Station) Start(ctx context.Context) {
	s.mu.Lock()
	s.running = true
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.processLoop(ctx)
	}()
}

// Stop 通知工位停机：正在装配的订单会走完全部步骤，
// 仍滞留在队列中的订单被显式拒绝（原因 shutdown），不会无声消失
func (s *Station) Stop() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
	s.cond.Broadcast()
}

// Join 等待处理循环退出并关闭完成通道
func (s *Station) Join() {
	s.wg.Wait()
	close(s.completions)
}

// Submit 将一张订单放入队列并唤醒处理循环
func (s *Station) Submit(o *types.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		s.logger.Warn("工位已停机, 拒绝新订单", "order_id", o.ID)
		return
	}
	s.queue = append(s.queue, o)
	metrics.OrdersInQueue.Inc()
	s.cond.Signal()
}

// processLoop 是工位的消费循环：队列空时挂起，新订单或停机信号唤醒
func (s *Station) processLoop(ctx context.Context) {
	for {
		s.mu.Lock()
		for s.running && len(s.queue) == 0 {
			s.cond.Wait()
		}
		if !s.running {
			remaining := s.queue
			s.queue = nil
			s.mu.Unlock()
			for _, o := range remaining {
				metrics.OrdersInQueue.Dec()
				s.reject(o, types.RejectShutdown, nil)
			}
			return
		}
		o := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()

		metrics.OrdersInQueue.Dec()
		s.process(ctx, o)
	}
}

// process 完成一张订单的全部工序
func (s *Station) process(ctx context.Context, o *types.Order) {
	logger := s.logger.With("order_id", o.ID, "product_id", o.ProductID)
	if o.TraceID != "" {
		logger = logger.With("trace_id", o.TraceID)
	}

	// 1. 解析产品目录
	product, ok := s.catalog[o.ProductID]
	if !ok {
		logger.Warn("未知产品, 订单被拒绝")
		s.reject(o, types.RejectUnknownProduct, nil)
		return
	}

	// 2. 原子预定物料清单，库存不足时按配置退避重试
	if !s.reserveWithRetry(ctx, o, product, logger) {
		return
	}

	// 3. 为每个组件分派一台空闲 AGV，收集各自的完成通道
	doneChs, dispatched, ok := s.dispatchTransports(ctx, o, product, logger)
	if !ok {
		// 停机打断了分派：等已分派的任务跑完，再退回未送出的组件
		for _, ch := range doneChs {
			<-ch
		}
		s.rollbackUndelivered(o, product, dispatched, logger)
		return
	}

	// 4. 在每条任务的完成信号上做真正的汇合，而不是固定等待
	for _, ch := range doneChs {
		<-ch
	}
	logger.Info("全部组件已送达", "components", len(doneChs), "sim_time", s.clock.Now())

	// 5. 装配: T_op = T_base + T_setup
	opMinutes := product.BaseAssemblyMinutes + s.setupMinutes
	assemblyStart := s.clock.Now()

	s.mu.Lock()
	s.processing = true
	s.mu.Unlock()

	_ = s.clock.Sleep(ctx, opMinutes) // 停机时不再等待，但订单照常完成

	s.mu.Lock()
	s.processing = false
	s.busyMinutes += opMinutes
	s.ordersCompleted++
	s.mu.Unlock()

	// 6. 完成：完成时间不早于装配开始 + 操作时长
	completion := s.clock.Now()
	if completion < assemblyStart+opMinutes {
		completion = assemblyStart + opMinutes
	}
	o.Completed = true
	o.CompletionTimeMinutes = completion

	s.warehouse.AddFinishedProduct(o.ProductID)
	metrics.OrdersCompletedTotal.Inc()
	s.bus.Publish(event.Event{
		Type:    event.OrderCompleted,
		Time:    completion,
		OrderID: o.ID,
		Order:   o,
		AGVID:   -1,
	})
	logger.Info("订单装配完成", "completion_time", completion, "lead_time", o.LeadTime())

	s.completions <- o
}

// reserveWithRetry 原子预定物料清单
// 失败时在虚拟时钟上退避后重试；尝试耗尽则显式拒绝订单
func (s *Station) reserveWithRetry(ctx context.Context, o *types.Order, product *types.Product, logger *slog.Logger) bool {
	for attempt := 1; ; attempt++ {
		if s.warehouse.ReserveComponents(product.BOM) {
			return true
		}
		if attempt >= s.maxReserveAttempts {
			logger.Warn("库存不足, 重试耗尽, 订单被拒绝", "attempts", attempt)
			s.reject(o, types.RejectNoInventory, nil)
			return false
		}
		logger.Info("库存不足, 退避后重试", "attempt", attempt, "backoff_minutes", s.retryBackoffMinutes)
		if err := s.clock.Sleep(ctx, s.retryBackoffMinutes); err != nil {
			s.reject(o, types.RejectShutdown, err)
			return false
		}
	}
}

// dispatchTransports 为物料清单中的每个组件找一台空闲 AGV
// 从上次分派位置开始轮询整个车队；没有空闲车辆时等待一个仿真分钟
// 后重新扫描，绝不丢弃组件。返回已分派任务的完成通道集合与已分派的
// 组件集合；停机打断分派时第三个返回值为 false
func (s *Station) dispatchTransports(ctx context.Context, o *types.Order, product *types.Product, logger *slog.Logger) ([]<-chan struct{}, map[string]bool, bool) {
	vehicles := s.fleet.Vehicles()
	doneChs := make([]<-chan struct{}, 0, len(product.BOM))
	dispatched := make(map[string]bool, len(product.BOM))

	for componentID, quantity := range product.BOM {
		for {
			if done, agvID, ok := s.tryAssign(vehicles, componentID, quantity); ok {
				s.bus.Publish(event.Event{
					Type:        event.TaskAssigned,
					Time:        s.clock.Now(),
					OrderID:     o.ID,
					AGVID:       agvID,
					ComponentID: componentID,
				})
				doneChs = append(doneChs, done)
				dispatched[componentID] = true
				break
			}
			// 车队全忙：等待-重试，而不是带着残缺的运输集合继续
			if err := s.clock.Sleep(ctx, 1); err != nil {
				logger.Warn("停机打断了运输分派", "dispatched", len(doneChs), "required", len(product.BOM))
				return doneChs, dispatched, false
			}
		}
	}
	return doneChs, dispatched, true
}

// tryAssign 从上次分派位置开始轮询一圈车队
func (s *Station) tryAssign(vehicles []*agv.AGV, componentID string, quantity int) (<-chan struct{}, int, bool) {
	s.mu.Lock()
	start := s.lastDispatchIdx
	s.mu.Unlock()

	for i := 0; i < len(vehicles); i++ {
		idx := (start + i) % len(vehicles)
		v := vehicles[idx]
		if done, ok := v.AssignTask(componentID, quantity, types.DestStation); ok {
			s.mu.Lock()
			s.lastDispatchIdx = (idx + 1) % len(vehicles)
			s.mu.Unlock()
			return done, v.ID(), true
		}
	}
	return nil, 0, false
}

// rollbackUndelivered 停机放弃订单时，把从未分派运输的组件退回仓库
// 已分派并送达工位的组件留在工位作为在制品损失，只记录日志，
// 不退回，避免库存凭空增加
func (s *Station) rollbackUndelivered(o *types.Order, product *types.Product, dispatched map[string]bool, logger *slog.Logger) {
	remainder := make(map[string]int)
	for componentID, quantity := range product.BOM {
		if !dispatched[componentID] {
			remainder[componentID] = quantity
		}
	}
	if len(remainder) > 0 {
		s.warehouse.ReturnComponents(remainder)
	}
	logger.Warn("订单在停机时被放弃",
		"delivered_components", len(dispatched), "returned_components", len(remainder))
	s.reject(o, types.RejectShutdown, nil)
}

// reject 显式拒绝一张订单：发布事件、计数，绝不无声丢弃
func (s *Station) reject(o *types.Order, reason types.RejectReason, err error) {
	s.mu.Lock()
	s.ordersRejected++
	s.mu.Unlock()

	metrics.OrdersRejectedTotal.WithLabelValues(string(reason)).Inc()
	s.bus.Publish(event.Event{
		Type:    event.OrderRejected,
		Time:    s.clock.Now(),
		OrderID: o.ID,
		Order:   o,
		AGVID:   -1,
		Reason:  reason,
		Err:     err,
	})
}

// IsProcessing 返回工位当前是否有订单处于装配阶段
func (s *Station) IsProcessing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.processing
}

// QueueDepth 返回队列中等待的订单数
func (s *Station) QueueDepth() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Stats 返回工位的累计忙时、完成数与拒绝数
func (s *Station) Stats() (busyMinutes, completed, rejected int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busyMinutes, s.ordersCompleted, s.ordersRejected
}
