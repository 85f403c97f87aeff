package model

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
)

// WalletConfig 收款钱包配置：展示支付选项时读取。
// DeepLinkTemplate 内含 {amount}/{reference} 占位符，渲染后用于拉起钱包 App。
type WalletConfig struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	WalletName       string `gorm:"size:64;not null" json:"wallet_name"`
	WalletType       string `gorm:"size:32;not null" json:"wallet_type"`
	DeepLinkTemplate string `gorm:"size:512" json:"deep_link_template"`
	AccountDetails   string `gorm:"size:512" json:"account_details"`
	// 不能带 default 标签：gorm 会把零值 false 从 INSERT 中省略，
	// 导致停用钱包写库后又被列默认值覆盖成启用。
	IsActive bool `gorm:"not null;index" json:"is_active"`
}

func (WalletConfig) TableName() string { return "wallet_configs" }

// RenderDeepLink 用金额（元，两位小数）与购买请求号填充模板。
func (w WalletConfig) RenderDeepLink(amount int64, reference string) string {
	if w.DeepLinkTemplate == "" {
		return ""
	}
	link := strings.ReplaceAll(w.DeepLinkTemplate, "{amount}", fmt.Sprintf("%d.%02d", amount/100, amount%100))
	return strings.ReplaceAll(link, "{reference}", reference)
}
