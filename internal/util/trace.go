package util

import "github.com/google/uuid"

// NewTraceID 生成一个随机的、唯一的 Trace ID
// 在订单下达时注入，贯穿该订单在工位与车队中的完整生命周期
func NewTraceID() string {
	return uuid.NewString()
}
