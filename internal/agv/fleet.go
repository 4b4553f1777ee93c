package agv

import (
	"context"
	"log/slog"
	"sync"

	"fmc-sim/internal/config"
	"fmc-sim/internal/event"
	"fmc-sim/internal/simclock"
)

// Fleet 是 AGV 车队：固定规模，统一启停
type Fleet struct {
	vehicles []*AGV
	wg       sync.WaitGroup
	logger   *slog.Logger
}

// NewFleet 创建 size 台 AGV 组成的车队，编号从 1 开始
func NewFleet(size int, timing config.AGVTiming, clock *simclock.Clock, bus *event.Bus, logger *slog.Logger) *Fleet {
	f := &Fleet{logger: logger.With("component", "fleet")}
	for i := 1; i <= size; i++ {
		f.vehicles = append(f.vehicles, New(i, timing, clock, bus, logger))
	}
	return f
}

// Start 启动车队中的全部车辆
func (f *Fleet) Start(ctx context.Context) {
	for _, v := range f.vehicles {
		v.Start(ctx, &f.wg)
	}
	f.logger.Info("车队已启动", "size", len(f.vehicles))
}

// Stop 向全部车辆发出停机信号并等待它们退出
// 返回后保证没有任何车辆协程仍在阻塞
func (f *Fleet) Stop() {
	for _, v := range f.vehicles {
		v.Stop()
	}
	f.wg.Wait()
	f.logger.Info("车队已全部停机")
}

// Vehicles 返回车队中的全部车辆，供工位做轮询分派
func (f *Fleet) Vehicles() []*AGV {
	return f.vehicles
}

// Size 返回车队规模
func (f *Fleet) Size() int {
	return len(f.vehicles)
}
