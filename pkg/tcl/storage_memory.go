package tcl

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/Workiva/go-datastructures/queue"
	cmap "github.com/orcaman/concurrent-map"
)

const memoryQueueHint = 100

// MemoryStorage is the default, in-process QueueStorage.
type MemoryStorage struct {
	letters        *queue.Queue
	ids            cmap.ConcurrentMap
	cumulativeSize int64
	lock           *sync.Mutex
	closed         int32
}

// NewMemoryStorage creates an empty MemoryStorage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		letters: queue.New(memoryQueueHint),
		ids:     cmap.New(),
		lock:    &sync.Mutex{},
	}
}

// Enqueue appends a letter.
func (ms *MemoryStorage) Enqueue(ctx context.Context, letter *Letter) error {
	if ms.isClosed() {
		return ErrStorageClosed
	}

	ms.lock.Lock()
	defer ms.lock.Unlock()

	if err := ms.letters.Put(letter); err != nil {
		return err
	}

	ms.ids.Set(letter.UniqueDocID, struct{}{})
	atomic.AddInt64(&ms.cumulativeSize, letter.FileSize)

	return nil
}

// Drain returns all letters in insertion order and empties the storage.
func (ms *MemoryStorage) Drain(ctx context.Context) ([]*Letter, error) {
	if ms.isClosed() {
		return nil, ErrStorageClosed
	}

	ms.lock.Lock()
	defer ms.lock.Unlock()

	letters := make([]*Letter, 0, ms.letters.Len())
	if ms.letters.Len() > 0 {
		// Get never blocks here, the queue is non-empty and writers hold the same lock.
		items, err := ms.letters.Get(ms.letters.Len())
		if err != nil {
			return nil, err
		}

		for _, item := range items {
			letters = append(letters, item.(*Letter))
		}
	}

	ms.ids = cmap.New()
	atomic.StoreInt64(&ms.cumulativeSize, 0)

	return letters, nil
}

// Count returns the number of queued letters.
func (ms *MemoryStorage) Count(ctx context.Context) (int, error) {
	return int(ms.letters.Len()), nil
}

// CumulativeSize returns the summed file size of queued letters.
func (ms *MemoryStorage) CumulativeSize(ctx context.Context) (int64, error) {
	return atomic.LoadInt64(&ms.cumulativeSize), nil
}

// Contains reports whether the id is queued.
func (ms *MemoryStorage) Contains(ctx context.Context, uniqueDocID string) (bool, error) {
	ms.lock.Lock()
	defer ms.lock.Unlock()

	return ms.ids.Has(uniqueDocID), nil
}

// Close disposes of the internal queue. Queued letters are lost.
func (ms *MemoryStorage) Close() error {
	if atomic.CompareAndSwapInt32(&ms.closed, 0, 1) {
		ms.letters.Dispose()
	}

	return nil
}

func (ms *MemoryStorage) isClosed() bool {
	return atomic.LoadInt32(&ms.closed) == 1
}
