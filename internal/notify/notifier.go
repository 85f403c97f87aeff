package notify

import (
	"context"

	"book_pay/internal/model"
	"book_pay/internal/queue"

	"github.com/google/uuid"
	rd "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Notifier 通知分发：上传主流程只调用这两个方法。
// 两者都是 fire-and-forget：任何失败只打日志，绝不影响调用方结果。
type Notifier interface {
	NotifyAdminNewConfirmation(ctx context.Context, pr model.PurchaseRequest, fileName string, count int)
	NotifyUserConfirmationReceived(ctx context.Context, pr model.PurchaseRequest, userEmail string)
}

// streamNotifier 把通知事件原子写入 Redis Stream outbox，
// 由 Relay 异步转 Kafka、消费端发邮件。入流即认为分发完成。
type streamNotifier struct {
	rdb    *rd.Client
	stream string
	zaplog *zap.Logger
}

func NewStreamNotifier(rdb *rd.Client, stream string, zaplog *zap.Logger) Notifier {
	return &streamNotifier{rdb: rdb, stream: stream, zaplog: zaplog}
}

func (n *streamNotifier) NotifyAdminNewConfirmation(ctx context.Context, pr model.PurchaseRequest, fileName string, count int) {
	n.append(ctx, queue.NotifyMessage{
		EventID:           uuid.New().String(),
		Kind:              queue.KindAdminNewConfirmation,
		PurchaseRequestID: pr.ID,
		UserID:            pr.UserID,
		ItemType:          string(pr.ItemType),
		ItemID:            pr.ItemID,
		Amount:            pr.Amount,
		ConfirmationCount: count,
		FileName:          fileName,
	})
}

func (n *streamNotifier) NotifyUserConfirmationReceived(ctx context.Context, pr model.PurchaseRequest, userEmail string) {
	if userEmail == "" {
		// 没有邮箱就没法通知用户，直接跳过
		return
	}
	n.append(ctx, queue.NotifyMessage{
		EventID:           uuid.New().String(),
		Kind:              queue.KindUserConfirmationReceived,
		PurchaseRequestID: pr.ID,
		UserID:            pr.UserID,
		UserEmail:         userEmail,
		ItemType:          string(pr.ItemType),
		ItemID:            pr.ItemID,
		Amount:            pr.Amount,
	})
}

func (n *streamNotifier) append(ctx context.Context, msg queue.NotifyMessage) {
	err := n.rdb.XAdd(ctx, &rd.XAddArgs{
		Stream: n.stream,
		Values: map[string]interface{}{
			"event_id":            msg.EventID,
			"kind":                msg.Kind,
			"purchase_request_id": msg.PurchaseRequestID,
			"user_id":             msg.UserID,
			"user_email":          msg.UserEmail,
			"item_type":           msg.ItemType,
			"item_id":             msg.ItemID,
			"amount":              msg.Amount,
			"count":               msg.ConfirmationCount,
			"file_name":           msg.FileName,
		},
	}).Err()
	if err != nil {
		// 通知链路 best-effort：失败只记录
		n.zaplog.Error("append notify event",
			zap.String("kind", msg.Kind),
			zap.String("purchase_request_id", msg.PurchaseRequestID),
			zap.Error(err))
	}
}
