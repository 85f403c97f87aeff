package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"book_pay/internal/model"
	"book_pay/internal/notify"
	"book_pay/internal/storage"
	"book_pay/internal/upload"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// 上传编排层错误
var (
	ErrPathGeneration = errors.New("path generation failed")
	ErrStorageUpload  = errors.New("storage upload failed")
	ErrDatabaseInsert = errors.New("database insert failed")
)

// ValidationError 携带校验失败的完整错误列表。
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return "file validation failed: " + strings.Join(e.Errors, "; ")
}

// Confirmations 凭证上传编排：校验 → 鉴权 → 生成路径 → 存 blob → 落元数据 → 通知。
// 不持有长生命周期状态，每次操作都重新读库，避免基于过期状态做判断。
type Confirmations struct {
	db           *gorm.DB
	blobs        storage.BlobStore
	notifier     notify.Notifier
	requests     *Requests
	signedURLTTL time.Duration
	zaplog       *zap.Logger
}

func NewConfirmations(db *gorm.DB, blobs storage.BlobStore, notifier notify.Notifier,
	requests *Requests, signedURLTTL time.Duration, zaplog *zap.Logger) *Confirmations {
	return &Confirmations{
		db:           db,
		blobs:        blobs,
		notifier:     notifier,
		requests:     requests,
		signedURLTTL: signedURLTTL,
		zaplog:       zaplog,
	}
}

// UploadInput 一次凭证上传的全部入参。
type UploadInput struct {
	PurchaseRequestID    string
	TransactionReference string
	File                 upload.File
	ClientIP             string
	UserAgent            string
	UserEmail            string
}

// UploadResult 返回给客户端的公开描述符。
type UploadResult struct {
	ID         string    `json:"id"`
	URL        string    `json:"url"`
	FileName   string    `json:"fileName"`
	FileSize   int64     `json:"fileSize"`
	FileType   string    `json:"fileType"`
	Status     string    `json:"status"`
	UploadedAt time.Time `json:"uploadedAt"`
}

// Upload 凭证上传主流程。严格顺序、fail-fast：
// 1. 参数与文件完整性校验（任何 I/O 之前）
// 2. 归属校验：请求必须存在且属于当前用户
// 3. 状态门禁：仅 pending/contacted 可上传
// 4. 用清洗后文件名的扩展名生成存储路径
// 5. upsert=false 写 blob：同路径竞争显式报错，绝不覆盖
// 6. 落元数据行；此步失败会留下孤儿 blob，交由清扫任务回收，不回滚 blob
// 7. best-effort 通知管理员与用户
func (s *Confirmations) Upload(ctx context.Context, userID string, in UploadInput) (UploadResult, error) {
	if in.PurchaseRequestID == "" {
		return UploadResult{}, ErrInsufficientData
	}
	if in.File.Name == "" && len(in.File.Bytes) == 0 {
		return UploadResult{}, ErrInsufficientData
	}

	res := upload.Validate(in.File)
	if !res.IsValid {
		return UploadResult{}, &ValidationError{Errors: res.Errors}
	}

	pr, err := s.requests.GetOwned(ctx, in.PurchaseRequestID, userID)
	if err != nil {
		return UploadResult{}, err
	}

	if !model.CanUploadConfirmation(pr.Status) {
		return UploadResult{}, ErrInvalidStatus
	}

	ext := strings.TrimPrefix(filepath.Ext(res.SanitizedFileName), ".")
	path, err := upload.GeneratePath(userID, pr.ID, ext)
	if err != nil {
		return UploadResult{}, fmt.Errorf("%w: %v", ErrPathGeneration, err)
	}

	url, err := s.blobs.Put(ctx, path, in.File.Bytes, in.File.DeclaredType, false)
	if err != nil {
		s.zaplog.Error("store confirmation blob",
			zap.String("path", path),
			zap.String("purchase_request_id", pr.ID),
			zap.Error(err))
		return UploadResult{}, fmt.Errorf("%w: %v", ErrStorageUpload, err)
	}

	confirmation := model.PaymentConfirmation{
		ID:                   uuid.New().String(),
		PurchaseRequestID:    pr.ID,
		UserID:               userID,
		FileName:             res.SanitizedFileName,
		FilePath:             path,
		FileSize:             int64(len(in.File.Bytes)),
		FileType:             in.File.DeclaredType,
		FileHash:             res.FileHash,
		TransactionReference: in.TransactionReference,
		Status:               model.ConfirmationPending,
		UploadIP:             in.ClientIP,
		UserAgent:            in.UserAgent,
	}
	if err := s.db.WithContext(ctx).Create(&confirmation).Error; err != nil {
		// blob 已写入但元数据缺失：记录孤儿路径，等清扫任务回收
		s.zaplog.Error("insert confirmation metadata, blob orphaned",
			zap.String("path", path),
			zap.String("purchase_request_id", pr.ID),
			zap.Error(err))
		return UploadResult{}, fmt.Errorf("%w: %v", ErrDatabaseInsert, err)
	}

	// 通知失败不影响上传结果
	var count int64
	if err := s.db.WithContext(ctx).Model(&model.PaymentConfirmation{}).
		Where("purchase_request_id = ?", pr.ID).Count(&count).Error; err != nil {
		count = 1
	}
	s.notifier.NotifyAdminNewConfirmation(ctx, pr, res.SanitizedFileName, int(count))
	s.notifier.NotifyUserConfirmationReceived(ctx, pr, in.UserEmail)

	return UploadResult{
		ID:         confirmation.ID,
		URL:        url,
		FileName:   confirmation.FileName,
		FileSize:   confirmation.FileSize,
		FileType:   confirmation.FileType,
		Status:     string(confirmation.Status),
		UploadedAt: confirmation.CreatedAt,
	}, nil
}

// ConfirmationView 管理端列表项：带限时签名下载链接。
type ConfirmationView struct {
	ID                   string     `json:"id"`
	PurchaseRequestID    string     `json:"purchase_request_id"`
	UserID               string     `json:"user_id"`
	FileName             string     `json:"file_name"`
	FileSize             int64      `json:"file_size"`
	FileType             string     `json:"file_type"`
	FileHash             string     `json:"file_hash"`
	TransactionReference string     `json:"transaction_reference,omitempty"`
	Status               string     `json:"status"`
	AdminNotes           string     `json:"admin_notes,omitempty"`
	ReviewedAt           *time.Time `json:"reviewed_at,omitempty"`
	UploadIP             string     `json:"upload_ip"`
	UploadedAt           time.Time  `json:"uploaded_at"`
	DownloadURL          string     `json:"download_url,omitempty"`
}

// ListForRequest 管理员按购买请求列出全部凭证。
// 签名失败的条目照常返回（无下载链接），不因个别签名错误整体失败。
func (s *Confirmations) ListForRequest(ctx context.Context, purchaseRequestID string) ([]ConfirmationView, error) {
	if purchaseRequestID == "" {
		return nil, ErrInsufficientData
	}

	var rows []model.PaymentConfirmation
	err := s.db.WithContext(ctx).
		Where("purchase_request_id = ?", purchaseRequestID).
		Order("created_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]ConfirmationView, 0, len(rows))
	for _, row := range rows {
		view := ConfirmationView{
			ID:                   row.ID,
			PurchaseRequestID:    row.PurchaseRequestID,
			UserID:               row.UserID,
			FileName:             row.FileName,
			FileSize:             row.FileSize,
			FileType:             row.FileType,
			FileHash:             row.FileHash,
			TransactionReference: row.TransactionReference,
			Status:               string(row.Status),
			AdminNotes:           row.AdminNotes,
			ReviewedAt:           row.ReviewedAt,
			UploadIP:             row.UploadIP,
			UploadedAt:           row.CreatedAt,
		}
		signed, err := s.blobs.SignedURL(ctx, row.FilePath, s.signedURLTTL)
		if err != nil {
			s.zaplog.Warn("sign download url", zap.String("path", row.FilePath), zap.Error(err))
		} else {
			view.DownloadURL = signed
		}
		out = append(out, view)
	}
	return out, nil
}

// Review 管理员裁定单份凭证：pending → approved/rejected/invalid，只允许裁定一次。
func (s *Confirmations) Review(ctx context.Context, confirmationID string, status model.ConfirmationStatus, notes, reviewedBy string) error {
	if confirmationID == "" {
		return ErrInsufficientData
	}
	switch status {
	case model.ConfirmationApproved, model.ConfirmationRejected, model.ConfirmationInvalid:
	default:
		return ErrInvalidStatus
	}

	now := time.Now()
	tx := s.db.WithContext(ctx).Model(&model.PaymentConfirmation{}).
		Where("id = ? AND status = ?", confirmationID, model.ConfirmationPending).
		Updates(map[string]any{
			"status":            status,
			"admin_notes":       notes,
			"admin_reviewed_by": reviewedBy,
			"reviewed_at":       now,
		})
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		// 不存在或已裁定过
		return ErrInvalidStatus
	}
	return nil
}
