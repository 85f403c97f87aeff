package service

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"book_pay/internal/model"
	"book_pay/internal/upload"

	"github.com/stretchr/testify/require"
)

func pngFile(name string, size int) upload.File {
	header := []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 0, 0, 0, 0x0D, 'I', 'H', 'D', 'R'}
	content := append(header, bytes.Repeat([]byte{0x00}, size-len(header))...)
	return upload.File{
		Name:         name,
		DeclaredType: "image/png",
		Size:         int64(len(content)),
		Bytes:        content,
	}
}

func TestUploadHappyPath(t *testing.T) {
	requests, confirmations, blobs, notifier, db := newTestServices(t)
	ctx := context.Background()
	pr := seedRequest(t, requests, "u1")

	// 2 MB 合法 PNG
	res, err := confirmations.Upload(ctx, "u1", UploadInput{
		PurchaseRequestID:    pr.ID,
		TransactionReference: "TX-001",
		File:                 pngFile("My Receipt.PNG", 2<<20),
		ClientIP:             "203.0.113.7",
		UserAgent:            "test-agent",
		UserEmail:            "u1@example.com",
	})
	require.NoError(t, err)
	require.Equal(t, "pending", res.Status)
	require.Equal(t, "my_receipt.png", res.FileName)
	require.Equal(t, int64(2<<20), res.FileSize)
	require.NotEmpty(t, res.URL)

	// 元数据行存在且路径落在 user+request 命名空间下
	var row model.PaymentConfirmation
	require.NoError(t, db.Where("id = ?", res.ID).First(&row).Error)
	require.True(t, strings.HasPrefix(row.FilePath, "confirmations/u1/"+pr.ID+"/"), "path=%s", row.FilePath)
	require.Equal(t, "u1", row.UserID)
	require.Equal(t, "TX-001", row.TransactionReference)
	require.Len(t, row.FileHash, 64)
	require.Equal(t, "203.0.113.7", row.UploadIP)

	// blob 落盘 + 双向通知各一次
	require.Len(t, blobs.objects, 1)
	require.Equal(t, 1, notifier.adminCalls)
	require.Equal(t, 1, notifier.userCalls)
	require.Equal(t, 1, notifier.lastCount)
}

func TestUploadRejectsSpoofedFile(t *testing.T) {
	requests, confirmations, blobs, _, db := newTestServices(t)
	ctx := context.Background()
	pr := seedRequest(t, requests, "u1")

	// 文件名叫 receipt.png，内容是 PDF：校验必须在任何 I/O 之前失败
	f := upload.File{
		Name:         "receipt.png",
		DeclaredType: "image/png",
		Bytes:        []byte("%PDF-1.4\nfake"),
		Size:         13,
	}
	_, err := confirmations.Upload(ctx, "u1", UploadInput{PurchaseRequestID: pr.ID, File: f})
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	require.NotEmpty(t, vErr.Errors)

	require.Empty(t, blobs.objects)
	var count int64
	require.NoError(t, db.Model(&model.PaymentConfirmation{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestUploadCrossUserIsNotFound(t *testing.T) {
	requests, confirmations, _, _, _ := newTestServices(t)
	ctx := context.Background()
	pr := seedRequest(t, requests, "owner")

	// 请求存在，但上传者不是归属用户
	_, err := confirmations.Upload(ctx, "attacker", UploadInput{
		PurchaseRequestID: pr.ID,
		File:              pngFile("r.png", 1024),
	})
	require.ErrorIs(t, err, ErrPurchaseNotFound)
}

func TestUploadBlockedInTerminalStatus(t *testing.T) {
	requests, confirmations, _, _, _ := newTestServices(t)
	ctx := context.Background()
	pr := seedRequest(t, requests, "u1")

	// 管理员直接拒绝后，用户再传凭证必须被状态门禁拦下
	_, err := requests.Transition(ctx, pr.ID, model.PurchaseRequestRejected, "")
	require.NoError(t, err)

	_, err = confirmations.Upload(ctx, "u1", UploadInput{
		PurchaseRequestID: pr.ID,
		File:              pngFile("r.png", 1024),
	})
	require.ErrorIs(t, err, ErrInvalidStatus)
}

func TestUploadStorageFailureLeavesNoMetadata(t *testing.T) {
	requests, confirmations, blobs, notifier, db := newTestServices(t)
	ctx := context.Background()
	pr := seedRequest(t, requests, "u1")

	blobs.failPut = true
	_, err := confirmations.Upload(ctx, "u1", UploadInput{
		PurchaseRequestID: pr.ID,
		File:              pngFile("r.png", 1024),
	})
	require.ErrorIs(t, err, ErrStorageUpload)

	// 元数据只能在 blob 写入成功之后出现
	var count int64
	require.NoError(t, db.Model(&model.PaymentConfirmation{}).Count(&count).Error)
	require.Zero(t, count)
	require.Zero(t, notifier.adminCalls)
}

func TestUploadAgainCreatesNewRecord(t *testing.T) {
	requests, confirmations, blobs, notifier, db := newTestServices(t)
	ctx := context.Background()
	pr := seedRequest(t, requests, "u1")

	_, err := confirmations.Upload(ctx, "u1", UploadInput{PurchaseRequestID: pr.ID, File: pngFile("a.png", 1024)})
	require.NoError(t, err)
	_, err = confirmations.Upload(ctx, "u1", UploadInput{PurchaseRequestID: pr.ID, File: pngFile("b.png", 2048)})
	require.NoError(t, err)

	// 重传永远是新记录，不覆盖旧的
	var count int64
	require.NoError(t, db.Model(&model.PaymentConfirmation{}).
		Where("purchase_request_id = ?", pr.ID).Count(&count).Error)
	require.Equal(t, int64(2), count)
	require.Len(t, blobs.objects, 2)
	require.Equal(t, 2, notifier.lastCount)
}

func TestUploadMissingInput(t *testing.T) {
	_, confirmations, _, _, _ := newTestServices(t)
	ctx := context.Background()

	_, err := confirmations.Upload(ctx, "u1", UploadInput{File: pngFile("a.png", 128)})
	require.ErrorIs(t, err, ErrInsufficientData)

	_, err = confirmations.Upload(ctx, "u1", UploadInput{PurchaseRequestID: "pr-1"})
	require.ErrorIs(t, err, ErrInsufficientData)
}

func TestListForRequestSignsDownloadURLs(t *testing.T) {
	requests, confirmations, _, _, _ := newTestServices(t)
	ctx := context.Background()
	pr := seedRequest(t, requests, "u1")

	_, err := confirmations.Upload(ctx, "u1", UploadInput{PurchaseRequestID: pr.ID, File: pngFile("a.png", 1024)})
	require.NoError(t, err)

	views, err := confirmations.ListForRequest(ctx, pr.ID)
	require.NoError(t, err)
	require.Len(t, views, 1)
	require.Contains(t, views[0].DownloadURL, "https://blob.test/sign/")
	require.Contains(t, views[0].DownloadURL, "token=")
}

func TestReviewConfirmationOnce(t *testing.T) {
	requests, confirmations, _, _, db := newTestServices(t)
	ctx := context.Background()
	pr := seedRequest(t, requests, "u1")

	res, err := confirmations.Upload(ctx, "u1", UploadInput{PurchaseRequestID: pr.ID, File: pngFile("a.png", 1024)})
	require.NoError(t, err)

	require.NoError(t, confirmations.Review(ctx, res.ID, model.ConfirmationApproved, "已核对", "admin-1"))

	var row model.PaymentConfirmation
	require.NoError(t, db.Where("id = ?", res.ID).First(&row).Error)
	require.Equal(t, model.ConfirmationApproved, row.Status)
	require.NotNil(t, row.ReviewedAt)
	require.Equal(t, "admin-1", row.AdminReviewedBy)

	// 已裁定的凭证不允许二次裁定
	err = confirmations.Review(ctx, res.ID, model.ConfirmationRejected, "", "admin-2")
	require.ErrorIs(t, err, ErrInvalidStatus)

	// 非法目标状态
	err = confirmations.Review(ctx, res.ID, model.ConfirmationPending, "", "admin-1")
	require.ErrorIs(t, err, ErrInvalidStatus)
}
