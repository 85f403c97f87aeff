package service

import (
	"context"
	"errors"
	"time"

	"book_pay/internal/model"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// 服务层哨兵错误：路由层据此映射稳定的 HTTP code。
var (
	ErrInsufficientData = errors.New("insufficient data")
	ErrPurchaseNotFound = errors.New("purchase request not found")
	ErrInvalidStatus    = errors.New("invalid purchase request status")
	ErrDatabaseWrite    = errors.New("database write failed")
)

// Requests 购买请求服务：用户创建意向、管理员流转状态、展示支付选项。
type Requests struct {
	db     *gorm.DB
	zaplog *zap.Logger
}

func NewRequests(db *gorm.DB, zaplog *zap.Logger) *Requests {
	return &Requests{db: db, zaplog: zaplog}
}

// CreateInput 用户发起购买意向的入参。
type CreateInput struct {
	ItemType               model.ItemType
	ItemID                 string
	Amount                 int64
	PreferredContactMethod string
	UserMessage            string
}

// Create 创建购买请求，初始状态恒为 pending。
func (s *Requests) Create(ctx context.Context, userID string, in CreateInput) (model.PurchaseRequest, error) {
	if userID == "" || in.ItemID == "" {
		return model.PurchaseRequest{}, ErrInsufficientData
	}
	if in.ItemType != model.ItemTypeBook && in.ItemType != model.ItemTypeBundle {
		return model.PurchaseRequest{}, ErrInsufficientData
	}
	if in.Amount <= 0 {
		return model.PurchaseRequest{}, ErrInsufficientData
	}

	pr := model.PurchaseRequest{
		ID:                     uuid.New().String(),
		UserID:                 userID,
		ItemType:               in.ItemType,
		ItemID:                 in.ItemID,
		Amount:                 in.Amount,
		Status:                 model.PurchaseRequestPending,
		PreferredContactMethod: in.PreferredContactMethod,
		UserMessage:            in.UserMessage,
	}
	if err := s.db.WithContext(ctx).Create(&pr).Error; err != nil {
		s.zaplog.Error("create purchase request", zap.Error(err))
		return model.PurchaseRequest{}, ErrDatabaseWrite
	}
	return pr, nil
}

// GetOwned 按 (id, userID) 查询购买请求。
// 跨用户查询统一返回 not found，不向探测方确认请求是否存在。
func (s *Requests) GetOwned(ctx context.Context, requestID, userID string) (model.PurchaseRequest, error) {
	if requestID == "" || userID == "" {
		return model.PurchaseRequest{}, ErrInsufficientData
	}
	var pr model.PurchaseRequest
	err := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", requestID, userID).
		First(&pr).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return model.PurchaseRequest{}, ErrPurchaseNotFound
		}
		return model.PurchaseRequest{}, err
	}
	return pr, nil
}

// Transition 管理员流转购买请求状态：
// - 非法流转返回 ErrInvalidStatus，不落任何变更
// - 首次进入 contacted 时写 contacted_at，首次进入终态时写 responded_at，均只写一次
func (s *Requests) Transition(ctx context.Context, requestID string, to model.PurchaseRequestStatus, notes string) (model.PurchaseRequest, error) {
	if requestID == "" {
		return model.PurchaseRequest{}, ErrInsufficientData
	}

	var pr model.PurchaseRequest
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", requestID).First(&pr).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrPurchaseNotFound
			}
			return err
		}
		if !model.CanTransition(pr.Status, to) {
			return ErrInvalidStatus
		}

		now := time.Now()
		updates := map[string]any{"status": to}
		if notes != "" {
			updates["admin_notes"] = notes
		}
		if to == model.PurchaseRequestContacted && pr.ContactedAt == nil {
			updates["contacted_at"] = now
			pr.ContactedAt = &now
		}
		if to.IsTerminal() && pr.RespondedAt == nil {
			updates["responded_at"] = now
			pr.RespondedAt = &now
		}

		if err := tx.Model(&model.PurchaseRequest{}).Where("id = ?", requestID).Updates(updates).Error; err != nil {
			return err
		}
		pr.Status = to
		if notes != "" {
			pr.AdminNotes = notes
		}
		return nil
	})
	if err != nil {
		return model.PurchaseRequest{}, err
	}
	return pr, nil
}

// WalletOption 支付选项：渲染后的 deep link + 账户信息。
type WalletOption struct {
	WalletName     string `json:"wallet_name"`
	WalletType     string `json:"wallet_type"`
	DeepLink       string `json:"deep_link,omitempty"`
	AccountDetails string `json:"account_details,omitempty"`
}

// PaymentOptions 列出启用的收款钱包，deep link 以请求金额与请求号填充。
// 仅限请求的归属用户查看。
func (s *Requests) PaymentOptions(ctx context.Context, requestID, userID string) ([]WalletOption, error) {
	pr, err := s.GetOwned(ctx, requestID, userID)
	if err != nil {
		return nil, err
	}

	var wallets []model.WalletConfig
	if err := s.db.WithContext(ctx).Where("is_active = ?", true).Find(&wallets).Error; err != nil {
		return nil, err
	}

	out := make([]WalletOption, 0, len(wallets))
	for _, w := range wallets {
		out = append(out, WalletOption{
			WalletName:     w.WalletName,
			WalletType:     w.WalletType,
			DeepLink:       w.RenderDeepLink(pr.Amount, pr.ID),
			AccountDetails: w.AccountDetails,
		})
	}
	return out, nil
}
