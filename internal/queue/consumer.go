package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"book_pay/internal/model"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Mailer 发送一封通知邮件。
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// Consumer 消费通知事件并发送邮件，结果写入 email_logs 审计表。
// 邮件失败只记录，不回推 Kafka 重试风暴。
type Consumer struct {
	r          *kafka.Reader
	db         *gorm.DB
	mailer     Mailer
	adminEmail string
	zaplog     *zap.Logger
}

func NewConsumer(brokers []string, topic, groupID string, db *gorm.DB, mailer Mailer, adminEmail string, zaplog *zap.Logger) *Consumer {
	return &Consumer{
		r: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  brokers,
			Topic:    topic,
			GroupID:  groupID,
			MinBytes: 1e3,
			MaxBytes: 1e6,
		}),
		db:         db,
		mailer:     mailer,
		adminEmail: adminEmail,
		zaplog:     zaplog,
	}
}

func (c *Consumer) Close() error { return c.r.Close() }

func (c *Consumer) Run(ctx context.Context) {
	for {
		m, err := c.r.ReadMessage(ctx)
		if err != nil {
			return // ctx cancel / 连接断开等
		}

		var msg NotifyMessage
		if err := json.Unmarshal(m.Value, &msg); err != nil {
			c.zaplog.Error("consumer unmarshal", zap.Error(err))
			continue
		}
		if err := msg.Validate(); err != nil {
			c.zaplog.Error("consumer invalid message", zap.Error(err))
			continue
		}

		c.handle(ctx, msg)
	}
}

func (c *Consumer) handle(ctx context.Context, msg NotifyMessage) {
	to, subject, body := RenderMail(msg, c.adminEmail)
	if to == "" {
		c.zaplog.Warn("notify event without recipient, dropped",
			zap.String("kind", msg.Kind),
			zap.String("purchase_request_id", msg.PurchaseRequestID))
		return
	}

	// 最多重试 3 次，指数退避；退避期间响应 ctx 取消，停服不等满退避
	var err error
	delay := time.Second
	for attempt := 1; attempt <= 3; attempt++ {
		sendCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		err = c.mailer.Send(sendCtx, to, subject, body)
		cancel()
		if err == nil {
			break
		}
		if attempt < 3 {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
			delay *= 2
		}
	}

	entry := model.EmailLog{
		PurchaseRequestID: msg.PurchaseRequestID,
		RecipientEmail:    to,
		Subject:           subject,
		Status:            model.EmailSent,
	}
	if err != nil {
		c.zaplog.Error("send notification mail",
			zap.String("kind", msg.Kind),
			zap.String("to", to),
			zap.Error(err))
		entry.Status = model.EmailFailed
		entry.ErrorMessage = err.Error()
	}

	if dbErr := c.db.WithContext(ctx).Create(&entry).Error; dbErr != nil {
		c.zaplog.Error("save email log", zap.Error(dbErr))
	}
}

// RenderMail 按事件类型渲染收件人、主题与正文。
func RenderMail(msg NotifyMessage, adminEmail string) (to, subject, body string) {
	amount := fmt.Sprintf("%d.%02d", msg.Amount/100, msg.Amount%100)
	switch msg.Kind {
	case KindAdminNewConfirmation:
		to = adminEmail
		subject = fmt.Sprintf("新支付凭证待审核（请求 %s）", msg.PurchaseRequestID)
		body = fmt.Sprintf(
			"用户 %s 为购买请求 %s（%s %s，金额 %s 元）上传了第 %d 份支付凭证：%s\n请尽快登录管理后台审核。",
			msg.UserID, msg.PurchaseRequestID, msg.ItemType, msg.ItemID, amount,
			msg.ConfirmationCount, msg.FileName)
	case KindUserConfirmationReceived:
		to = msg.UserEmail
		subject = "支付凭证已收到"
		body = fmt.Sprintf(
			"您好！\n\n您为购买请求 %s 上传的支付凭证已收到，管理员会在 1-2 个工作日内完成核对。\n审核通过后将自动开通阅读权限。\n\n感谢您的购买！",
			msg.PurchaseRequestID)
	}
	return to, subject, body
}
