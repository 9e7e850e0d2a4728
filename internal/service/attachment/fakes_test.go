package attachment

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/tasktrack/attachments/internal/domain"
	"github.com/tasktrack/attachments/internal/store"
)

// memState is the committed state shared by a memRepo and its transactions.
type memState struct {
	txMu    sync.Mutex // held for a whole transaction, standing in for advisory locks
	mu      sync.Mutex
	records map[uuid.UUID]domain.Attachment

	createErr    error
	createErrFor func(a *domain.Attachment) error
	findErr      error
	listErr      error
	deleteErr    error
	countErr     error
}

// memRepo is an in-memory Repository. Transactions work on a copy of the
// records that replaces the committed state only when fn succeeds.
type memRepo struct {
	st   *memState
	view map[uuid.UUID]domain.Attachment
}

func newMemRepo() *memRepo {
	return &memRepo{st: &memState{records: make(map[uuid.UUID]domain.Attachment)}}
}

var _ Repository = (*memRepo)(nil)

func (r *memRepo) with(fn func(records map[uuid.UUID]domain.Attachment)) {
	if r.view != nil {
		fn(r.view)
		return
	}
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	fn(r.st.records)
}

func (r *memRepo) RunInTx(ctx context.Context, fn func(ctx context.Context, repo Repository) error) error {
	if r.view != nil {
		return fn(ctx, r)
	}

	r.st.txMu.Lock()
	defer r.st.txMu.Unlock()

	r.st.mu.Lock()
	view := make(map[uuid.UUID]domain.Attachment, len(r.st.records))
	for k, v := range r.st.records {
		view[k] = v
	}
	r.st.mu.Unlock()

	if err := fn(ctx, &memRepo{st: r.st, view: view}); err != nil {
		return err
	}

	r.st.mu.Lock()
	r.st.records = view
	r.st.mu.Unlock()
	return nil
}

func (r *memRepo) Create(ctx context.Context, a *domain.Attachment) (*domain.Attachment, error) {
	if r.st.createErr != nil {
		return nil, r.st.createErr
	}
	if r.st.createErrFor != nil {
		if err := r.st.createErrFor(a); err != nil {
			return nil, err
		}
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	var err error
	r.with(func(records map[uuid.UUID]domain.Attachment) {
		if _, ok := records[a.ID]; ok {
			err = store.ErrDuplicate
			return
		}
		records[a.ID] = *a
	})
	if err != nil {
		return nil, err
	}
	created := *a
	return &created, nil
}

func (r *memRepo) FindByID(ctx context.Context, id uuid.UUID) (*domain.Attachment, error) {
	if r.st.findErr != nil {
		return nil, r.st.findErr
	}
	var (
		found domain.Attachment
		ok    bool
	)
	r.with(func(records map[uuid.UUID]domain.Attachment) {
		found, ok = records[id]
	})
	if !ok {
		return nil, store.ErrAttachmentNotFound
	}
	return &found, nil
}

func (r *memRepo) FindByTaskID(ctx context.Context, taskID int64) ([]*domain.Attachment, error) {
	if r.st.listErr != nil {
		return nil, r.st.listErr
	}
	out := make([]*domain.Attachment, 0)
	r.with(func(records map[uuid.UUID]domain.Attachment) {
		for _, a := range records {
			if a.TaskID == taskID {
				out = append(out, &a)
			}
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].UploadedAt.After(out[j].UploadedAt) })
	return out, nil
}

func (r *memRepo) DeleteByID(ctx context.Context, id uuid.UUID) (*domain.Attachment, error) {
	if r.st.deleteErr != nil {
		return nil, r.st.deleteErr
	}
	var (
		found domain.Attachment
		ok    bool
	)
	r.with(func(records map[uuid.UUID]domain.Attachment) {
		if found, ok = records[id]; ok {
			delete(records, id)
		}
	})
	if !ok {
		return nil, store.ErrAttachmentNotFound
	}
	return &found, nil
}

func (r *memRepo) TotalSizeForTask(ctx context.Context, taskID int64) (int64, error) {
	var total int64
	r.with(func(records map[uuid.UUID]domain.Attachment) {
		for _, a := range records {
			if a.TaskID == taskID {
				total += a.FileSize
			}
		}
	})
	return total, nil
}

func (r *memRepo) CountReferences(ctx context.Context, storageKey string, excludeID uuid.UUID) (int, error) {
	if r.st.countErr != nil {
		return 0, r.st.countErr
	}
	count := 0
	r.with(func(records map[uuid.UUID]domain.Attachment) {
		for id, a := range records {
			if a.StorageKey == storageKey && id != excludeID {
				count++
			}
		}
	})
	return count, nil
}

func (r *memRepo) LockTask(ctx context.Context, taskID int64) error { return nil }

func (r *memRepo) LockStorageKey(ctx context.Context, storageKey string) error { return nil }

// seed inserts a record directly into the committed state.
func (r *memRepo) seed(a *domain.Attachment) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	r.st.records[a.ID] = *a
}

func (r *memRepo) count() int {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	return len(r.st.records)
}

// memBlobs is an in-memory BlobStore.
type memBlobs struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
	puts    int
	deletes int

	putErr    error
	deleteErr error
	urlErrFor func(key string) error
}

func newMemBlobs() *memBlobs {
	return &memBlobs{objects: make(map[string][]byte), types: make(map[string]string)}
}

var _ BlobStore = (*memBlobs)(nil)

func (b *memBlobs) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	b.mu.Lock()
	b.puts++
	b.mu.Unlock()

	if b.putErr != nil {
		return b.putErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	if int64(len(data)) != size {
		return fmt.Errorf("short body: got %d bytes, want %d", len(data), size)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[key] = data
	b.types[key] = contentType
	return nil
}

func (b *memBlobs) Delete(ctx context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.deletes++
	if b.deleteErr != nil {
		return b.deleteErr
	}
	delete(b.objects, key)
	return nil
}

func (b *memBlobs) SignedURL(ctx context.Context, key string, ttl time.Duration, downloadName string) (string, error) {
	if b.urlErrFor != nil {
		if err := b.urlErrFor(key); err != nil {
			return "", err
		}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.objects[key]; !ok {
		return "", fmt.Errorf("no object %q", key)
	}
	return fmt.Sprintf("https://blobs.test/%s?expires=%d", key, int(ttl.Seconds())), nil
}

func (b *memBlobs) has(key string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.objects[key]
	return ok
}

func (b *memBlobs) len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.objects)
}

// MockBlobStore is a testify mock of BlobStore.
type MockBlobStore struct {
	mock.Mock
}

func (m *MockBlobStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	args := m.Called(ctx, key, r, size, contentType)
	return args.Error(0)
}

func (m *MockBlobStore) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *MockBlobStore) SignedURL(ctx context.Context, key string, ttl time.Duration, downloadName string) (string, error) {
	args := m.Called(ctx, key, ttl, downloadName)
	return args.String(0), args.Error(1)
}
