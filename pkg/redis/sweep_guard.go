package redis

import (
	"context"
	"time"

	rd "github.com/redis/go-redis/v9"
)

// luaSweepOnce 通过 SETNX 锁保证「同一孤儿路径只清理一次」，
// 多实例并发清扫时不会重复删除/重复告警。
const luaSweepOnce = `
local lockKey = KEYS[1]
local ttlSec = tonumber(ARGV[1])

if redis.call('SETNX', lockKey, '1') == 1 then
  redis.call('EXPIRE', lockKey, ttlSec)
  return 1
end
return 0
`

// ClaimOrphanOnce 认领一个孤儿 blob 路径：
// - 首次认领返回 true，调用方可安全删除
// - 重复认领返回 false（其他清扫者已处理）
func ClaimOrphanOnce(ctx context.Context, rdb *rd.Client, path string, ttl time.Duration) (bool, error) {
	lockKey := OrphanSweepLockKey(path)
	n, err := rdb.Eval(ctx, luaSweepOnce, []string{lockKey}, int64(ttl/time.Second)).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
