package web

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// Hub 维护所有 WebSocket 客户端连接，把制造单元的状态快照广播给它们
// clients 只由 Run 循环这一个 goroutine 触碰，注册、注销、广播都经由
// 通道进入循环，不需要额外的锁
type Hub struct {
	clients    map[*websocket.Conn]bool
	broadcast  chan CellState       // 待广播的单元状态快照
	register   chan *websocket.Conn // 新建立的客户端连接
	unregister chan *websocket.Conn // 断开的客户端连接
	done       chan struct{}        // Stop 时关闭，Run 随之退出
	stopOnce   sync.Once
}

// NewHub 创建一个新的 Hub 实例
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*websocket.Conn]bool),
		broadcast:  make(chan CellState),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		done:       make(chan struct{}),
	}
}

// Run 是 Hub 的主循环；Stop 被调用后关闭全部连接并退出
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			for conn := range h.clients {
				conn.Close()
			}
			h.clients = make(map[*websocket.Conn]bool)
			return
		case conn := <-h.register:
			h.clients[conn] = true
		case conn := <-h.unregister:
			if _, ok := h.clients[conn]; ok {
				delete(h.clients, conn)
				conn.Close()
			}
		case state := <-h.broadcast:
			message, err := json.Marshal(state)
			if err != nil {
				slog.Error("序列化单元状态失败", "error", err)
				continue
			}
			for conn := range h.clients {
				if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
					slog.Warn("写入 WebSocket 失败", "error", err)
					conn.Close()
					delete(h.clients, conn)
				}
			}
		}
	}
}

// Stop 终止主循环并断开全部客户端，可以安全地重复调用
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

// BroadcastState 把一份状态快照交给主循环广播
// 快照必须是调用方的深拷贝；Hub 停止后快照被静默丢弃
func (h *Hub) BroadcastState(state CellState) {
	select {
	case h.broadcast <- state:
	case <-h.done:
	}
}

// upgrader 将普通的 HTTP 连接升级为 WebSocket 连接
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// 允许所有来源的连接，生产环境中应配置为特定的域名
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// ServeWs 处理来自客户端的 WebSocket 请求
// 只做服务器到客户端的单向推送，不启动读循环
func (h *Hub) ServeWs(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("升级 WebSocket 失败", "error", err)
		return
	}
	select {
	case h.register <- conn:
	case <-h.done:
		conn.Close()
	}
}
