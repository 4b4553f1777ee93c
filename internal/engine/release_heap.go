package engine

import (
	"fmc-sim/internal/types"
)

// releaseItem 是下达堆中的元素，包装了 Order
type releaseItem struct {
	Order *types.Order // 实际的订单数据
	index int          // 元素在堆中的索引
}

// releaseHeap 实现了 heap.Interface 接口，是一个按下达时间排序的最小堆
// 控制中心用它快速取出下一批到期订单
type releaseHeap []*releaseItem

func (h releaseHeap) Len() int { return len(h) }

// Less 定义了元素的排序规则：先比下达时间，平局按加载顺序
func (h releaseHeap) Less(i, j int) bool {
	if h[i].Order.ReleaseTimeMinutes != h[j].Order.ReleaseTimeMinutes {
		return h[i].Order.ReleaseTimeMinutes < h[j].Order.ReleaseTimeMinutes
	}
	return h[i].Order.Sequence < h[j].Order.Sequence
}

// Swap 交换两个元素的位置
func (h releaseHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

// Push 向堆中添加元素
func (h *releaseHeap) Push(x interface{}) {
	n := len(*h)
	item := x.(*releaseItem)
	item.index = n
	*h = append(*h, item)
}

// Pop 从堆中移除并返回下达时间最早的元素
func (h *releaseHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil // 避免内存泄漏
	item.index = -1
	*h = old[0 : n-1]
	return item
}
