package model

import "time"

// EmailStatus 通知邮件的投递结果。
type EmailStatus string

const (
	EmailSent   EmailStatus = "sent"
	EmailFailed EmailStatus = "failed"
)

// EmailLog 通知消费者写入的邮件审计记录。
// 通知链路整体 best-effort，失败只落日志与本表，不影响主流程。
type EmailLog struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	PurchaseRequestID string      `gorm:"size:36;index" json:"purchase_request_id"`
	RecipientEmail    string      `gorm:"size:255;not null" json:"recipient_email"`
	Subject           string      `gorm:"size:255;not null" json:"subject"`
	Status            EmailStatus `gorm:"size:16;not null" json:"status"`
	ErrorMessage      string      `gorm:"size:512" json:"error_message,omitempty"`
}

func (EmailLog) TableName() string { return "email_logs" }
