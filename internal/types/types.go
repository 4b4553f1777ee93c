package types

// Destination 定义 AGV 运输任务的目的地
// 使用字符串类型，方便在日志和事件中直接使用
type Destination string

const (
	DestStation   Destination = "ASSEMBLY_STATION" // 装配工位：向工位送料
	DestWarehouse Destination = "WAREHOUSE"        // 仓库：退料或空载返回
)

// Order 表示一张生产订单
// 由 ControlCenter 在加载时创建；进入工位队列后所有权转移给 AssemblyStation，
// 完成字段只由工位写入，完成之后订单视为不可变
type Order struct {
	ID                 string `json:"id"`                   // 订单唯一标识
	ProductID          string `json:"product_id"`           // 目标产品 ID
	ReleaseTimeMinutes int    `json:"release_time_minutes"` // 下达时间（仿真时钟分钟）
	Priority           int    `json:"priority"`             // 优先级：数值越大优先级越高
	DueTimeMinutes     int    `json:"due_time_minutes"`     // 交期（分钟），-1 表示未设置
	Sequence           int    `json:"sequence"`             // 加载顺序号，FIFO 与各策略的平局裁决依据
	TraceID            string `json:"trace_id,omitempty"`   // 下达时注入的追踪 ID

	CompletionTimeMinutes int  `json:"completion_time_minutes"` // 完成时间，-1 表示未完成
	Completed             bool `json:"completed"`               // 是否已完成
}

// LeadTime 返回订单的制造周期（完成时间 - 下达时间）
// 未完成的订单返回 -1
func (o *Order) LeadTime() int {
	if !o.Completed {
		return -1
	}
	return o.CompletionTimeMinutes - o.ReleaseTimeMinutes
}

// Product 表示产品目录中的一个条目
// 只读数据，加载后在整个仿真中按引用共享，任何组件不得修改
type Product struct {
	ID                  string         `json:"id"`                    // 产品 ID
	BOM                 map[string]int `json:"bom"`                   // 物料清单：组件 ID -> 需求数量（均为正整数）
	BaseAssemblyMinutes int            `json:"base_assembly_minutes"` // 基础装配时长（分钟）
}

// AGVTask 表示分派给某台 AGV 的一次运输任务
// 由持有它的 AGV 独占；任务完成后清空为零值
type AGVTask struct {
	ComponentID string      `json:"component_id"` // 待运输的组件 ID
	Quantity    int         `json:"quantity"`     // 运输数量
	Destination Destination `json:"destination"`  // 目的地
}

// Empty 判断任务是否为空（AGV 空闲的判定条件之一）
func (t AGVTask) Empty() bool {
	return t.ComponentID == ""
}

// RejectReason 订单被拒绝的原因分类
type RejectReason string

const (
	RejectUnknownProduct RejectReason = "unknown_product"        // 产品目录中不存在
	RejectNoInventory    RejectReason = "insufficient_inventory" // 重试耗尽后库存仍不足
	RejectShutdown       RejectReason = "shutdown"               // 停机时放弃的订单
)
