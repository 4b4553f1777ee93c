package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"fmc-sim/internal/agv"
	"fmc-sim/internal/config"
	"fmc-sim/internal/engine"
	"fmc-sim/internal/event"
	"fmc-sim/internal/handlers"
	"fmc-sim/internal/loader"
	"fmc-sim/internal/persistence"
	"fmc-sim/internal/policy"
	"fmc-sim/internal/simclock"
	"fmc-sim/internal/station"
	"fmc-sim/internal/types"
	"fmc-sim/internal/warehouse"
	"fmc-sim/internal/web"
)

// main 是应用程序的主入口
func main() {
	// 1. 初始化核心组件
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("加载配置失败", "error", err)
		os.Exit(1)
	}

	hub := web.NewHub()
	go hub.Run()
	defer hub.Stop()
	stateTracker := web.NewStateTracker(hub)

	eventBus := event.NewBus()

	eventLog, err := persistence.Open(cfg.EventLogPath, logger)
	if err != nil {
		logger.Error("无法初始化事件日志", "error", err)
		os.Exit(1)
	}
	defer eventLog.Close()

	// 2. 加载输入定义文件：任何一行非法都中止启动
	catalog, err := loader.LoadBOM(cfg.BOMFile)
	if err != nil {
		logger.Error("加载物料清单失败", "error", err)
		os.Exit(1)
	}
	orders, err := loader.LoadOrders(cfg.OrdersFile)
	if err != nil {
		logger.Error("加载订单文件失败", "error", err)
		os.Exit(1)
	}
	inventory, err := loader.LoadInventory(cfg.InventoryFile)
	if err != nil {
		logger.Error("加载库存文件失败", "error", err)
		os.Exit(1)
	}

	// 3. 构建仿真上下文：时钟、仓库、车队、工位、策略、控制中心
	clock := simclock.New()

	wh := warehouse.New(logger)
	for componentID, qty := range inventory {
		wh.AddComponent(componentID, qty)
	}

	fleet := agv.NewFleet(cfg.FleetSize, cfg.AGV, clock, eventBus, logger)

	st := station.New(wh, fleet, catalog, clock, eventBus, station.Options{
		SetupMinutes:        cfg.SetupTimeMinutes,
		MaxReserveAttempts:  cfg.MaxReserveAttempts,
		RetryBackoffMinutes: cfg.RetryBackoffMinutes,
	}, logger)

	pol, err := policy.NewWithCatalog(cfg.Policy, cfg.PolicyRule, catalog)
	if err != nil {
		logger.Error("构造下达策略失败", "error", err)
		os.Exit(1)
	}

	cc := engine.New(clock, fleet, st, eventBus, pol, engine.Options{
		SimDurationMinutes: cfg.SimDurationMinutes,
		TickInterval:       time.Duration(cfg.TickIntervalMs) * time.Millisecond,
	}, logger)
	cc.LoadOrders(orders)

	// 4. 注册事件处理器并启动
	handlers.RegisterEventHandlers(eventBus, stateTracker, eventLog, logger)

	logger.Info("=== 柔性制造单元仿真系统启动 ===",
		"orders", len(orders), "products", len(catalog), "fleet_size", cfg.FleetSize)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := cc.Start(ctx); err != nil {
		logger.Error("启动控制中心失败", "error", err)
		os.Exit(1)
	}
	go startAPIServer(cfg.ListenAddr, cc, wh, hub, stateTracker, clock, logger)

	// 5. 优雅停机：收到信号或仿真自然结束
	waitForShutdown(logger, cc)

	if report := cc.Report(); report != nil {
		if err := persistence.WriteKPIReport(cfg.ReportPath, report); err != nil {
			logger.Error("写入 KPI 报表失败", "error", err)
		} else {
			logger.Info("KPI 报表已写入", "path", cfg.ReportPath)
		}
	}
	logger.Info("仿真演示结束, 系统已安全退出")
}

// startAPIServer 启动 API 和 Web 服务器
func startAPIServer(addr string, cc *engine.ControlCenter, wh *warehouse.Warehouse,
	hub *web.Hub, st *web.StateTracker, clock *simclock.Clock, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/ws", hub.ServeWs)
	mux.HandleFunc("/api/state", func(w http.ResponseWriter, r *http.Request) {
		components, finished := wh.Snapshot()
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"sim_time":          clock.Now(),
			"lifecycle":         cc.State(),
			"cell":              st.GetStateSnapshot(),
			"components":        components,
			"finished_products": finished,
		})
	})
	mux.HandleFunc("/api/kpi", func(w http.ResponseWriter, r *http.Request) {
		report := cc.Report()
		if report == nil {
			http.Error(w, "仿真尚未结束", http.StatusConflict)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(report)
	})
	mux.HandleFunc("/api/orders", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var o types.Order
		if err := json.NewDecoder(r.Body).Decode(&o); err != nil {
			logger.Warn("解析订单请求失败", "error", err)
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if o.ID == "" {
			o.ID = "API_ORDER_" + time.Now().Format("150405.000")
		}
		o.CompletionTimeMinutes = -1
		if o.DueTimeMinutes == 0 {
			o.DueTimeMinutes = -1
		}
		cc.AddOrder(&o)
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(map[string]string{"status": "accepted", "id": o.ID})
	})

	logger.Info("API 和前端服务器启动", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("API 服务器启动失败", "error", err)
	}
}

// waitForShutdown 等待系统信号或仿真自然结束，实现优雅停机
func waitForShutdown(logger *slog.Logger, cc *engine.ControlCenter) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		cc.Wait()
		close(done)
	}()

	select {
	case <-sigChan:
		logger.Info("接收到停机信号, 正在优雅关闭...")
		cc.Stop()
		cc.Wait()
	case <-done:
	}
}
