package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// AGVTiming 定义 AGV 运输循环各阶段的时长（仿真分钟）
// RETURNING 阶段必须显式配置，它不携带任务载荷但计入整个循环的忙时
type AGVTiming struct {
	ToWarehouseMinutes int `mapstructure:"to_warehouse_minutes"` // 前往仓库
	PickingMinutes     int `mapstructure:"picking_minutes"`      // 取货
	ToStationMinutes   int `mapstructure:"to_station_minutes"`   // 前往工位
	DroppingMinutes    int `mapstructure:"dropping_minutes"`     // 卸货
	ReturningMinutes   int `mapstructure:"returning_minutes"`    // 返回停车位
}

// CycleMinutes 返回一次完整运输循环的总时长
func (t AGVTiming) CycleMinutes() int {
	return t.ToWarehouseMinutes + t.PickingMinutes + t.ToStationMinutes +
		t.DroppingMinutes + t.ReturningMinutes
}

// Config 定义应用程序的配置结构
// 使用 mapstructure 标签来映射配置文件中的字段
type Config struct {
	FleetSize           int       `mapstructure:"fleet_size"`            // AGV 车队规模
	SetupTimeMinutes    int       `mapstructure:"setup_time_minutes"`    // 工位固定换型时间，叠加到每个产品的基础装配时长上
	SimDurationMinutes  int       `mapstructure:"sim_duration_minutes"`  // 仿真总时长（分钟）
	TickIntervalMs      int       `mapstructure:"tick_interval_ms"`      // 每个仿真分钟对应的真实间隔，0 表示全速推进
	Policy              string    `mapstructure:"policy"`                // 下达策略名称: FIFO / PRIORITY / SPT / EDD / RULE
	PolicyRule          string    `mapstructure:"policy_rule"`           // RULE 策略的打分表达式 (expr 语法)
	MaxReserveAttempts  int       `mapstructure:"max_reserve_attempts"`  // 库存不足时的最大预定尝试次数
	RetryBackoffMinutes int       `mapstructure:"retry_backoff_minutes"` // 两次预定尝试之间的退避时长
	AGV                 AGVTiming `mapstructure:"agv"`                   // AGV 各阶段时长
	OrdersFile          string    `mapstructure:"orders_file"`           // 订单定义文件路径
	BOMFile             string    `mapstructure:"bom_file"`              // 物料清单文件路径
	InventoryFile       string    `mapstructure:"inventory_file"`        // 初始库存文件路径
	ListenAddr          string    `mapstructure:"listen_addr"`           // HTTP 服务监听地址
	EventLogPath        string    `mapstructure:"event_log_path"`        // 仿真事件日志数据库路径
	ReportPath          string    `mapstructure:"report_path"`           // KPI 报表输出路径
}

// LoadConfig 从 config.yaml 文件加载配置
// 使用 Viper 库来读取和解析配置文件
func LoadConfig() (*Config, error) {
	viper.SetConfigName("config") // 配置文件名称 (不带扩展名)
	viper.SetConfigType("yaml")   // 配置文件类型
	viper.AddConfigPath(".")      // 查找配置文件的路径 (当前目录)

	// 设置默认值
	viper.SetDefault("fleet_size", 10)
	viper.SetDefault("setup_time_minutes", 5)
	viper.SetDefault("sim_duration_minutes", 480)
	viper.SetDefault("tick_interval_ms", 0)
	viper.SetDefault("policy", "FIFO")
	viper.SetDefault("max_reserve_attempts", 3)
	viper.SetDefault("retry_backoff_minutes", 5)
	viper.SetDefault("agv.to_warehouse_minutes", 2)
	viper.SetDefault("agv.picking_minutes", 1)
	viper.SetDefault("agv.to_station_minutes", 3)
	viper.SetDefault("agv.dropping_minutes", 1)
	viper.SetDefault("agv.returning_minutes", 2)
	viper.SetDefault("orders_file", "data/orders.txt")
	viper.SetDefault("bom_file", "data/bom.txt")
	viper.SetDefault("inventory_file", "data/inventory.txt")
	viper.SetDefault("listen_addr", ":8080")
	viper.SetDefault("event_log_path", "sim_events.db")
	viper.SetDefault("report_path", "kpi_report.txt")

	// 读取配置文件
	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	// 将配置解析到结构体中
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	if cfg.FleetSize < 1 {
		return nil, fmt.Errorf("配置非法: fleet_size 必须为正数, 得到 %d", cfg.FleetSize)
	}
	if cfg.AGV.ReturningMinutes < 0 {
		return nil, fmt.Errorf("配置非法: agv.returning_minutes 不能为负数")
	}

	return &cfg, nil
}
