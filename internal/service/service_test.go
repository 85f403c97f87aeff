package service

import (
	"context"
	"fmt"
	"path/filepath"
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

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&model.PurchaseRequest{},
		&model.PaymentConfirmation{},
		&model.WalletConfig{},
		&model.EmailLog{},
	))
	return db
}

// fakeBlobStore 内存版对象存储：保持 upsert=false 的冲突语义。
type fakeBlobStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	failPut bool
}

func newFakeBlobStore() *fakeBlobStore {
	return &fakeBlobStore{objects: make(map[string][]byte)}
}

func (f *fakeBlobStore) Put(_ context.Context, path string, data []byte, _ string, upsert bool) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failPut {
		return "", fmt.Errorf("storage down")
	}
	if _, ok := f.objects[path]; ok && !upsert {
		return "", storage.ErrBlobExists
	}
	f.objects[path] = data
	return f.PublicURL(path), nil
}

func (f *fakeBlobStore) Delete(_ context.Context, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.objects[path]; !ok {
		return storage.ErrBlobNotFound
	}
	delete(f.objects, path)
	return nil
}

func (f *fakeBlobStore) List(_ context.Context, prefix string) ([]storage.BlobInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []storage.BlobInfo
	for path, data := range f.objects {
		if len(path) >= len(prefix) && path[:len(prefix)] == prefix {
			out = append(out, storage.BlobInfo{Path: path, Size: int64(len(data))})
		}
	}
	return out, nil
}

func (f *fakeBlobStore) PublicURL(path string) string {
	return "https://blob.test/public/" + path
}

func (f *fakeBlobStore) SignedURL(_ context.Context, path string, _ time.Duration) (string, error) {
	return "https://blob.test/sign/" + path + "?token=t", nil
}

// fakeNotifier 只记录通知调用，模拟 fire-and-forget。
type fakeNotifier struct {
	mu         sync.Mutex
	adminCalls int
	userCalls  int
	lastCount  int
}

func (f *fakeNotifier) NotifyAdminNewConfirmation(_ context.Context, _ model.PurchaseRequest, _ string, count int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.adminCalls++
	f.lastCount = count
}

func (f *fakeNotifier) NotifyUserConfirmationReceived(_ context.Context, _ model.PurchaseRequest, email string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if email != "" {
		f.userCalls++
	}
}

func newTestServices(t *testing.T) (*Requests, *Confirmations, *fakeBlobStore, *fakeNotifier, *gorm.DB) {
	t.Helper()
	db := newTestDB(t)
	blobs := newFakeBlobStore()
	notifier := &fakeNotifier{}
	requests := NewRequests(db, zap.NewNop())
	confirmations := NewConfirmations(db, blobs, notifier, requests, 15*time.Minute, zap.NewNop())
	return requests, confirmations, blobs, notifier, db
}

func seedRequest(t *testing.T, requests *Requests, userID string) model.PurchaseRequest {
	t.Helper()
	pr, err := requests.Create(context.Background(), userID, CreateInput{
		ItemType: model.ItemTypeBook,
		ItemID:   "book-42",
		Amount:   2590,
	})
	require.NoError(t, err)
	return pr
}
