package reconcile

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"book_pay/internal/model"
	"book_pay/internal/storage"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type memBlobStore struct {
	mu      sync.Mutex
	objects map[string]storage.BlobInfo
}

func newMemBlobStore() *memBlobStore {
	return &memBlobStore{objects: make(map[string]storage.BlobInfo)}
}

func (m *memBlobStore) Put(_ context.Context, path string, data []byte, _ string, upsert bool) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[path]; ok && !upsert {
		return "", storage.ErrBlobExists
	}
	m.objects[path] = storage.BlobInfo{Path: path, Size: int64(len(data))}
	return m.PublicURL(path), nil
}

func (m *memBlobStore) Delete(_ context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[path]; !ok {
		return storage.ErrBlobNotFound
	}
	delete(m.objects, path)
	return nil
}

func (m *memBlobStore) List(_ context.Context, prefix string) ([]storage.BlobInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []storage.BlobInfo
	for _, b := range m.objects {
		if strings.HasPrefix(b.Path, prefix) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (m *memBlobStore) PublicURL(path string) string { return "mem://" + path }

func (m *memBlobStore) SignedURL(_ context.Context, path string, _ time.Duration) (string, error) {
	return "mem://" + path + "?signed", nil
}

func (m *memBlobStore) putWithTime(path string, created time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[path] = storage.BlobInfo{Path: path, Size: 1, CreatedAt: created}
}

func TestSweepOnceRemovesOnlyAgedOrphans(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.PaymentConfirmation{}))

	blobs := newMemBlobStore()
	old := time.Now().Add(-48 * time.Hour)

	// 有元数据行的对象：不可删
	blobs.putWithTime("confirmations/u1/p1/kept.png", old)
	require.NoError(t, db.Create(&model.PaymentConfirmation{
		ID:                "c1",
		PurchaseRequestID: "p1",
		UserID:            "u1",
		FileName:          "kept.png",
		FilePath:          "confirmations/u1/p1/kept.png",
		FileSize:          1,
		FileType:          "image/png",
		Status:            model.ConfirmationPending,
	}).Error)

	// 超过宽限期的孤儿：删
	blobs.putWithTime("confirmations/u1/p1/orphan.png", old)
	// 宽限期内的孤儿（可能是进行中的上传）：留
	blobs.putWithTime("confirmations/u1/p1/fresh.png", time.Now())
	// 列举响应缺时间戳（零值）：视同宽限期内，留
	blobs.putWithTime("confirmations/u1/p1/notime.png", time.Time{})
	// 前缀之外的对象：不在清扫范围
	blobs.putWithTime("covers/book-1.jpg", old)

	sweeper := NewSweeper(db, blobs, nil, 24*time.Hour, zap.NewNop())
	removed, err := sweeper.SweepOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, removed)

	_, keptOK := blobs.objects["confirmations/u1/p1/kept.png"]
	_, orphanOK := blobs.objects["confirmations/u1/p1/orphan.png"]
	_, freshOK := blobs.objects["confirmations/u1/p1/fresh.png"]
	_, noTimeOK := blobs.objects["confirmations/u1/p1/notime.png"]
	_, outsideOK := blobs.objects["covers/book-1.jpg"]
	require.True(t, keptOK)
	require.False(t, orphanOK)
	require.True(t, freshOK)
	require.True(t, noTimeOK)
	require.True(t, outsideOK)
}

func TestSweepOnceEmptyStore(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.PaymentConfirmation{}))

	sweeper := NewSweeper(db, newMemBlobStore(), nil, time.Hour, zap.NewNop())
	removed, err := sweeper.SweepOnce(context.Background())
	require.NoError(t, err)
	require.Zero(t, removed)
}
