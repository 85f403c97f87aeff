package upload

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/google/uuid"
)

// ErrBadPathInput 路径生成入参非法（空 id 或扩展名不合规）。
var ErrBadPathInput = errors.New("invalid path input")

// 扩展名仅允许小写字母数字，长度 ≤ 10。
var extPattern = regexp.MustCompile(`^[a-z0-9]{1,10}$`)

// GeneratePath 派生凭证存储路径：
//
//	confirmations/{userID}/{purchaseRequestID}/{uuid}.{ext}
//
// 路径以所属用户与购买请求为命名空间，绝不使用原始文件名，
// 防止路径穿越与跨用户枚举；uuid 段保证同一请求多次上传互不冲突。
func GeneratePath(userID, purchaseRequestID, ext string) (string, error) {
	if userID == "" || purchaseRequestID == "" {
		return "", fmt.Errorf("%w: user/request id 不能为空", ErrBadPathInput)
	}
	if !extPattern.MatchString(ext) {
		return "", fmt.Errorf("%w: 非法扩展名 %q", ErrBadPathInput, ext)
	}
	return fmt.Sprintf("confirmations/%s/%s/%s.%s",
		userID, purchaseRequestID, uuid.New().String(), ext), nil
}
