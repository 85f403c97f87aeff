package queue

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func validAdminMsg() NotifyMessage {
	return NotifyMessage{
		EventID:           "ev-1",
		Kind:              KindAdminNewConfirmation,
		PurchaseRequestID: "pr-1",
		UserID:            "u1",
		ItemType:          "book",
		ItemID:            "book-1",
		Amount:            2590,
		ConfirmationCount: 2,
		FileName:          "receipt.png",
	}
}

func TestNotifyMessageValidate(t *testing.T) {
	require.NoError(t, validAdminMsg().Validate())

	m := validAdminMsg()
	m.EventID = ""
	require.Error(t, m.Validate())

	m = validAdminMsg()
	m.Kind = "sms"
	require.Error(t, m.Validate())

	m = validAdminMsg()
	m.PurchaseRequestID = ""
	require.Error(t, m.Validate())

	// 用户通知必须有收件邮箱
	m = validAdminMsg()
	m.Kind = KindUserConfirmationReceived
	m.UserEmail = ""
	require.Error(t, m.Validate())
	m.UserEmail = "u1@example.com"
	require.NoError(t, m.Validate())
}

func TestParseNotifyEvent(t *testing.T) {
	values := map[string]interface{}{
		"event_id":            "ev-1",
		"kind":                KindAdminNewConfirmation,
		"purchase_request_id": "pr-1",
		"user_id":             "u1",
		"user_email":          "",
		"item_type":           "book",
		"item_id":             "book-1",
		"amount":              "2590",
		"count":               "2",
		"file_name":           "receipt.png",
	}
	msg, err := ParseNotifyEvent(values)
	require.NoError(t, err)
	require.Equal(t, validAdminMsg(), msg)

	// 缺字段 / 脏数据
	delete(values, "amount")
	_, err = ParseNotifyEvent(values)
	require.Error(t, err)

	values["amount"] = "not-a-number"
	_, err = ParseNotifyEvent(values)
	require.Error(t, err)
}

func TestRenderMail(t *testing.T) {
	to, subject, body := RenderMail(validAdminMsg(), "admin@book.shop")
	require.Equal(t, "admin@book.shop", to)
	require.Contains(t, subject, "pr-1")
	require.Contains(t, body, "25.90")
	require.Contains(t, body, "receipt.png")

	m := validAdminMsg()
	m.Kind = KindUserConfirmationReceived
	m.UserEmail = "u1@example.com"
	to, _, body = RenderMail(m, "admin@book.shop")
	require.Equal(t, "u1@example.com", to)
	require.Contains(t, body, "pr-1")

	// 未知类型不产出收件人
	m.Kind = "sms"
	to, _, _ = RenderMail(m, "admin@book.shop")
	require.Empty(t, to)
}
