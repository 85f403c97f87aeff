package queue

import "fmt"

// 通知事件类型：管理员「收到新凭证」与用户「凭证已接收」。
const (
	KindAdminNewConfirmation     = "admin_new_confirmation"
	KindUserConfirmationReceived = "user_confirmation_received"
)

// NotifyMessage 是写入 Kafka 的通知事件。
// EventID 作为 Kafka key 与消费端幂等标识。
type NotifyMessage struct {
	EventID           string `json:"event_id"`
	Kind              string `json:"kind"`
	PurchaseRequestID string `json:"purchase_request_id"`
	UserID            string `json:"user_id"`
	UserEmail         string `json:"user_email,omitempty"`
	ItemType          string `json:"item_type"`
	ItemID            string `json:"item_id"`
	Amount            int64  `json:"amount"` // 分
	ConfirmationCount int    `json:"confirmation_count"`
	FileName          string `json:"file_name,omitempty"`
}

// Validate 做最小字段校验，防止消费者处理脏消息。
func (m NotifyMessage) Validate() error {
	if m.EventID == "" {
		return fmt.Errorf("event_id is required")
	}
	switch m.Kind {
	case KindAdminNewConfirmation, KindUserConfirmationReceived:
	default:
		return fmt.Errorf("unknown kind %q", m.Kind)
	}
	if m.PurchaseRequestID == "" {
		return fmt.Errorf("purchase_request_id is required")
	}
	if m.UserID == "" {
		return fmt.Errorf("user_id is required")
	}
	if m.Kind == KindUserConfirmationReceived && m.UserEmail == "" {
		return fmt.Errorf("user_email is required for user notification")
	}
	return nil
}
