package model

import (
	"time"

	"gorm.io/gorm"
)

// ConfirmationStatus 描述支付凭证的审核状态。
type ConfirmationStatus string

const (
	ConfirmationPending  ConfirmationStatus = "pending"  // 已上传，待管理员审核
	ConfirmationApproved ConfirmationStatus = "approved" // 凭证有效
	ConfirmationRejected ConfirmationStatus = "rejected" // 凭证无效/不符
	ConfirmationInvalid  ConfirmationStatus = "invalid"  // 事后判定为非法文件
)

// PaymentConfirmation 支付凭证元数据。
// 文件内容一经存储即不可变：重传永远是新记录，不覆盖旧记录。
type PaymentConfirmation struct {
	ID        string         `gorm:"size:36;primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	PurchaseRequestID string `gorm:"size:36;not null;index" json:"purchase_request_id"`
	// UserID 必须等于所属 PurchaseRequest.UserID，入库前由编排层校验。
	UserID string `gorm:"size:36;not null;index" json:"user_id"`

	FileName string `gorm:"size:255;not null" json:"file_name"` // 原始文件名（已清洗）
	// FilePath 由路径生成器派生，uniqueIndex 保证同路径不会产生两条元数据。
	FilePath string `gorm:"size:512;uniqueIndex;not null" json:"file_path"`
	FileSize int64  `gorm:"not null" json:"file_size"`
	FileType string `gorm:"size:64;not null" json:"file_type"` // 声明的 MIME
	FileHash string `gorm:"size:64;index" json:"file_hash"`    // SHA-256，审计/去重扩展点

	TransactionReference string `gorm:"size:128" json:"transaction_reference,omitempty"`

	Status          ConfirmationStatus `gorm:"size:16;not null;default:pending;index" json:"status"`
	AdminNotes      string             `gorm:"size:1024" json:"admin_notes,omitempty"`
	AdminReviewedBy string             `gorm:"size:36" json:"admin_reviewed_by,omitempty"`
	ReviewedAt      *time.Time         `json:"reviewed_at,omitempty"`

	// 上传审计字段
	UploadIP  string `gorm:"size:64" json:"upload_ip"`
	UserAgent string `gorm:"size:512" json:"user_agent"`
}

func (PaymentConfirmation) TableName() string { return "payment_confirmations" }
