package simclock

import (
	"container/heap"
	"context"
	"errors"
	"sync"
)

// ErrStopped 表示等待被时钟停止信号唤醒，而不是到达了目标时刻
var ErrStopped = errors.New("simclock: clock stopped")

// Clock 是一个虚拟仿真时钟：单调递增的分钟计数器
// 所有组件的定时等待都注册为时钟上的到期事件，由唯一的驱动者
// （ControlCenter 的下达循环）推进，仿真速度与墙上时钟完全解耦
type Clock struct {
	mu      sync.Mutex
	now     int        // 当前仿真时间（分钟）
	waiters waiterHeap // 按到期时刻排序的等待者
	stopped bool
}

// waiter 是一个注册在时钟上的到期事件
type waiter struct {
	deadline int
	ch       chan struct{} // 到期或停机时关闭
	index    int
}

// New 创建一个从 0 分钟开始的虚拟时钟
func New() *Clock {
	return &Clock{}
}

// Now 返回当前仿真时间（分钟）
func (c *Clock) Now() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// After 注册一个 minutes 分钟后到期的事件，返回到期时会被关闭的通道
// minutes <= 0 时返回一个已关闭的通道
func (c *Clock) After(minutes int) <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch := make(chan struct{})
	if minutes <= 0 || c.stopped {
		close(ch)
		return ch
	}
	heap.Push(&c.waiters, &waiter{deadline: c.now + minutes, ch: ch})
	return ch
}

// Sleep 挂起调用者 minutes 个仿真分钟
// 唤醒条件：到达目标时刻、时钟被停止（返回 ErrStopped）或 ctx 被取消
// 到期与停机都通过关闭通道唤醒，因此以注册时记下的目标时刻为准：
// 只要时钟已经走到目标时刻，即使随后立刻停机也算正常到期
func (c *Clock) Sleep(ctx context.Context, minutes int) error {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return ErrStopped
	}
	if minutes <= 0 {
		c.mu.Unlock()
		return nil
	}
	deadline := c.now + minutes
	ch := make(chan struct{})
	heap.Push(&c.waiters, &waiter{deadline: deadline, ch: ch})
	c.mu.Unlock()

	select {
	case <-ch:
		c.mu.Lock()
		reached := c.now >= deadline
		c.mu.Unlock()
		if !reached {
			return ErrStopped
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Advance 将时钟推进 d 分钟，并唤醒所有已到期的等待者
func (c *Clock) Advance(d int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.advanceTo(c.now + d)
}

// AdvanceTo 将时钟推进到绝对时刻 t（只进不退）
func (c *Clock) AdvanceTo(t int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.advanceTo(t)
}

// advanceTo 必须在持锁状态下调用
func (c *Clock) advanceTo(t int) {
	if t <= c.now {
		return
	}
	c.now = t
	for c.waiters.Len() > 0 && c.waiters[0].deadline <= c.now {
		w := heap.Pop(&c.waiters).(*waiter)
		close(w.ch)
	}
}

// Stop 停止时钟并唤醒所有等待者，保证停机时没有协程永久停在 Sleep 上
func (c *Clock) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return
	}
	c.stopped = true
	for c.waiters.Len() > 0 {
		w := heap.Pop(&c.waiters).(*waiter)
		close(w.ch)
	}
}

// waiterHeap 实现了 heap.Interface，是按到期时刻排序的最小堆
type waiterHeap []*waiter

func (h waiterHeap) Len() int { return len(h) }

func (h waiterHeap) Less(i, j int) bool { return h[i].deadline < h[j].deadline }

func (h waiterHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *waiterHeap) Push(x interface{}) {
	w := x.(*waiter)
	w.index = len(*h)
	*h = append(*h, w)
}

func (h *waiterHeap) Pop() interface{} {
	old := *h
	n := len(old)
	w := old[n-1]
	old[n-1] = nil // 避免内存泄漏
	w.index = -1
	*h = old[0 : n-1]
	return w
}
