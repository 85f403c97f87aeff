package redis

import "fmt"

// UploadRateLimitUserKey 按用户维度限流上传接口。
func UploadRateLimitUserKey(userID string) string {
	return fmt.Sprintf("book_pay:rate_limit:upload:user:%s", userID)
}

// UploadRateLimitIPKey 未能识别用户时按 IP 降级限流。
func UploadRateLimitIPKey(ip string) string {
	return fmt.Sprintf("book_pay:rate_limit:upload:ip:%s", ip)
}

// OrphanSweepLockKey 标记某个孤儿 blob 路径是否已被本轮清扫处理过。
func OrphanSweepLockKey(path string) string {
	return fmt.Sprintf("book_pay:orphan:swept:%s", path)
}
