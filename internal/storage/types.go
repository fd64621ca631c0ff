package storage

import "companion/internal/chat"

// Record 一个用户的完整持久化记录（导入/导出格式）
// Record is the full persisted record of one user (import/export format)
type Record struct {
	UserID    string      `json:"user_id"`
	Turns     []chat.Turn `json:"turns"`
	UpdatedAt string      `json:"updated_at,omitempty"`
}

// RecordInfo 记录摘要
// RecordInfo summarizes a stored record
type RecordInfo struct {
	UserID    string `json:"user_id"`
	Turns     int    `json:"turns"`
	UpdatedAt string `json:"updated_at"`
}
