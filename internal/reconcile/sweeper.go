package reconcile

import (
	"context"
	"time"

	"book_pay/internal/model"
	"book_pay/internal/storage"
	rediskey "book_pay/pkg/redis"

	rd "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// blobPrefix 凭证对象统一落在该前缀下，清扫范围以此为界。
const blobPrefix = "confirmations/"

// Sweeper 孤儿 blob 清扫：
// 元数据落库失败时已写入的 blob 会成为孤儿（blob 有、行没有），
// 周期性比对存储与 payment_confirmations 并删除超过宽限期的孤儿。
// 宽限期保护「blob 已写、行还没提交」的进行中上传。
type Sweeper struct {
	db     *gorm.DB
	blobs  storage.BlobStore
	rdb    *rd.Client
	grace  time.Duration
	zaplog *zap.Logger
}

func NewSweeper(db *gorm.DB, blobs storage.BlobStore, rdb *rd.Client, grace time.Duration, zaplog *zap.Logger) *Sweeper {
	return &Sweeper{db: db, blobs: blobs, rdb: rdb, grace: grace, zaplog: zaplog}
}

// Run 按固定间隔执行清扫直到 ctx 取消。
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := s.SweepOnce(ctx)
			if err != nil {
				s.zaplog.Error("orphan sweep", zap.Error(err))
				continue
			}
			if removed > 0 {
				s.zaplog.Info("orphan sweep removed blobs", zap.Int("count", removed))
			}
		}
	}
}

// SweepOnce 执行一轮清扫，返回删除的孤儿数量。
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	blobs, err := s.blobs.List(ctx, blobPrefix)
	if err != nil {
		return 0, err
	}
	if len(blobs) == 0 {
		return 0, nil
	}

	// 一次取全量已知路径；凭证元数据量级小，无需分页
	var known []string
	if err := s.db.WithContext(ctx).Model(&model.PaymentConfirmation{}).
		Pluck("file_path", &known).Error; err != nil {
		return 0, err
	}
	knownSet := make(map[string]bool, len(known))
	for _, p := range known {
		knownSet[p] = true
	}

	cutoff := time.Now().Add(-s.grace)
	removed := 0
	for _, b := range blobs {
		if knownSet[b.Path] {
			continue
		}
		// 时间戳缺失视同宽限期内：宁可多留一轮，也不能删掉进行中的上传
		if b.CreatedAt.IsZero() || b.CreatedAt.After(cutoff) {
			continue
		}

		// SETNX 认领，多实例并发清扫不会重复处理同一路径；
		// 未接 Redis 时退化为单实例清扫，直接处理。
		if s.rdb != nil {
			claimed, err := rediskey.ClaimOrphanOnce(ctx, s.rdb, b.Path, 24*time.Hour)
			if err != nil {
				s.zaplog.Warn("claim orphan", zap.String("path", b.Path), zap.Error(err))
				continue
			}
			if !claimed {
				continue
			}
		}

		if err := s.blobs.Delete(ctx, b.Path); err != nil {
			s.zaplog.Error("delete orphan blob", zap.String("path", b.Path), zap.Error(err))
			continue
		}
		s.zaplog.Info("orphan blob removed",
			zap.String("path", b.Path),
			zap.Int64("size", b.Size))
		removed++
	}
	return removed, nil
}
