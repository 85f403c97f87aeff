package model

import (
	"time"

	"gorm.io/gorm"
)

// PurchaseRequestStatus 描述人工收款审核状态机。
type PurchaseRequestStatus string

const (
	PurchaseRequestPending   PurchaseRequestStatus = "pending"   // 用户已发起购买意向，等待处理
	PurchaseRequestContacted PurchaseRequestStatus = "contacted" // 管理员已联系用户（可选环节）
	PurchaseRequestApproved  PurchaseRequestStatus = "approved"  // 审核通过（终态）
	PurchaseRequestRejected  PurchaseRequestStatus = "rejected"  // 审核拒绝（终态）
)

// ItemType 购买对象类型：单本书或套装。
type ItemType string

const (
	ItemTypeBook   ItemType = "book"
	ItemTypeBundle ItemType = "bundle"
)

// PurchaseRequest 人工收款购买请求：由用户创建，仅管理员可变更状态。
// 软删除保留审计痕迹，不做物理删除。
type PurchaseRequest struct {
	ID        string         `gorm:"size:36;primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	UserID   string   `gorm:"size:36;not null;index" json:"user_id"`
	ItemType ItemType `gorm:"size:16;not null" json:"item_type"`
	ItemID   string   `gorm:"size:36;not null" json:"item_id"`
	Amount   int64    `gorm:"not null" json:"amount"` // 总金额，单位分

	Status PurchaseRequestStatus `gorm:"size:16;not null;default:pending;index" json:"status"`

	PreferredContactMethod string `gorm:"size:32" json:"preferred_contact_method,omitempty"`
	UserMessage            string `gorm:"size:1024" json:"user_message,omitempty"`
	AdminNotes             string `gorm:"size:1024" json:"admin_notes,omitempty"`

	// ContactedAt / RespondedAt 仅在首次进入对应状态时写入一次，之后不再覆盖。
	ContactedAt *time.Time `json:"contacted_at,omitempty"`
	RespondedAt *time.Time `json:"responded_at,omitempty"`
}

func (PurchaseRequest) TableName() string { return "purchase_requests" }

// IsTerminal 终态（approved/rejected）不允许再流转。
func (s PurchaseRequestStatus) IsTerminal() bool {
	return s == PurchaseRequestApproved || s == PurchaseRequestRejected
}

// Valid 校验状态取值是否合法。
func (s PurchaseRequestStatus) Valid() bool {
	switch s {
	case PurchaseRequestPending, PurchaseRequestContacted,
		PurchaseRequestApproved, PurchaseRequestRejected:
		return true
	}
	return false
}

// CanTransition 状态机唯一的流转判定：
// - 非终态 → 终态 恒可达（联系环节可跳过）
// - pending → contacted 可达
// 其余组合一律非法，调用方不得落库。
func CanTransition(from, to PurchaseRequestStatus) bool {
	if !from.Valid() || !to.Valid() {
		return false
	}
	if from.IsTerminal() {
		return false
	}
	if to.IsTerminal() {
		return true
	}
	return from == PurchaseRequestPending && to == PurchaseRequestContacted
}

// CanUploadConfirmation 仅 pending/contacted 阶段允许用户上传支付凭证。
func CanUploadConfirmation(status PurchaseRequestStatus) bool {
	return status == PurchaseRequestPending || status == PurchaseRequestContacted
}
