package persistence

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	_ "modernc.org/sqlite"

	"fmc-sim/internal/event"
)

const eventSchema = `
CREATE TABLE IF NOT EXISTS sim_events (
    seq        INTEGER PRIMARY KEY AUTOINCREMENT,
    sim_time   INTEGER NOT NULL,
    type       TEXT NOT NULL,
    entity     TEXT NOT NULL DEFAULT '',
    detail     TEXT NOT NULL DEFAULT '{}',
    created_at TEXT NOT NULL DEFAULT (datetime('now','localtime'))
);
CREATE INDEX IF NOT EXISTS idx_sim_events_time ON sim_events(sim_time);
`

// EventLog 是落盘到 SQLite 的仿真事件日志
// 订阅事件总线上的全部事件类型，把时间线按发布顺序追加成行，
// 供外部报表与回放工具按仿真时间消费
type EventLog struct {
	db     *sql.DB
	mu     sync.Mutex // 串行化写入；连接数也固定为 1
	logger *slog.Logger
}

// Entry 是事件日志中的一条记录
type Entry struct {
	Seq     int64  `json:"seq"`
	SimTime int    `json:"sim_time"`
	Type    string `json:"type"`
	Entity  string `json:"entity"`
	Detail  string `json:"detail"`
}

// eventDetail 是 detail 列的 JSON 负载
type eventDetail struct {
	OrderID     string `json:"order_id,omitempty"`
	ProductID   string `json:"product_id,omitempty"`
	AGVID       int    `json:"agv_id,omitempty"`
	State       string `json:"state,omitempty"`
	ComponentID string `json:"component_id,omitempty"`
	Reason      string `json:"reason,omitempty"`
	Error       string `json:"error,omitempty"`
}

// Open 打开（或创建）事件日志数据库并建表
func Open(path string, logger *slog.Logger) (*EventLog, error) {
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("打开事件日志数据库失败: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(eventSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("初始化事件日志表失败: %w", err)
	}
	return &EventLog{db: db, logger: logger.With("component", "event_log")}, nil
}

// Append 追加一条事件记录
func (l *EventLog) Append(e event.Event) error {
	detail := eventDetail{
		OrderID:     e.OrderID,
		State:       e.State,
		ComponentID: e.ComponentID,
		Reason:      string(e.Reason),
	}
	if e.Order != nil {
		detail.ProductID = e.Order.ProductID
	}
	if e.AGVID >= 0 {
		detail.AGVID = e.AGVID
	}
	if e.Err != nil {
		detail.Error = e.Err.Error()
	}
	payload, err := json.Marshal(detail)
	if err != nil {
		return err
	}

	entity := e.OrderID
	if entity == "" && e.AGVID >= 0 {
		entity = fmt.Sprintf("AGV-%d", e.AGVID)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	_, err = l.db.Exec(
		`INSERT INTO sim_events (sim_time, type, entity, detail) VALUES (?, ?, ?, ?)`,
		e.Time, string(e.Type), entity, string(payload),
	)
	return err
}

// Handler 返回可直接订阅到事件总线上的处理函数
// 写入失败只记日志，不影响仿真本身
func (l *EventLog) Handler() event.Handler {
	return func(e event.Event) {
		if err := l.Append(e); err != nil {
			l.logger.Error("写入事件日志失败", "error", err, "type", e.Type)
		}
	}
}

// List 按时间线返回全部已记录的事件
func (l *EventLog) List() ([]Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rows, err := l.db.Query(
		`SELECT seq, sim_time, type, entity, detail FROM sim_events ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Seq, &e.SimTime, &e.Type, &e.Entity, &e.Detail); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Close 关闭数据库连接
func (l *EventLog) Close() error {
	return l.db.Close()
}
