package tcl

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// QueueStorage is where pending letters live between enqueue and flush.
//
// Implementations must preserve insertion order across Drain and must reset the
// cumulative size to zero when drained.
type QueueStorage interface {
	Enqueue(ctx context.Context, letter *Letter) error
	Drain(ctx context.Context) ([]*Letter, error)
	Count(ctx context.Context) (int, error)
	CumulativeSize(ctx context.Context) (int64, error)
	Contains(ctx context.Context, uniqueDocID string) (bool, error)
	Close() error
}

// QueueSnapshot is the aggregate state of the queue right after an enqueue.
type QueueSnapshot struct {
	Count          int
	CumulativeSize int64
}

// LetterQueue serializes enqueue and drain over a QueueStorage.
type LetterQueue struct {
	storage QueueStorage
	lock    *sync.Mutex
}

// NewLetterQueue creates a LetterQueue, defaulting to in-memory storage.
func NewLetterQueue(storage QueueStorage) *LetterQueue {

	if storage == nil {
		storage = NewMemoryStorage()
	}

	return &LetterQueue{
		storage: storage,
		lock:    &sync.Mutex{},
	}
}

// Enqueue appends the letter and returns the queue state including it.
// A letter whose UniqueDocID is already queued is not appended and ErrDuplicateSkipped is returned.
func (q *LetterQueue) Enqueue(ctx context.Context, letter *Letter) (QueueSnapshot, error) {
	q.lock.Lock()
	defer q.lock.Unlock()

	exists, err := q.storage.Contains(ctx, letter.UniqueDocID)
	if err != nil {
		return QueueSnapshot{}, err
	}
	if exists {
		return QueueSnapshot{}, ErrDuplicateSkipped
	}

	if err := q.storage.Enqueue(ctx, letter); err != nil {
		return QueueSnapshot{}, err
	}

	return q.snapshot(ctx)
}

// Drain atomically returns every queued letter in insertion order and empties the queue.
func (q *LetterQueue) Drain(ctx context.Context) ([]*Letter, error) {
	q.lock.Lock()
	defer q.lock.Unlock()

	return q.storage.Drain(ctx)
}

// Requeue puts letters back after a failed flush, skipping any id that was queued again meanwhile.
func (q *LetterQueue) Requeue(ctx context.Context, letters []*Letter) error {

	for _, letter := range letters {
		if _, err := q.Enqueue(ctx, letter); err != nil && !errors.Is(err, ErrDuplicateSkipped) {
			return err
		}
	}

	return nil
}

// Count returns the number of queued letters.
func (q *LetterQueue) Count(ctx context.Context) (int, error) {
	q.lock.Lock()
	defer q.lock.Unlock()

	return q.storage.Count(ctx)
}

// CumulativeFileSize returns the summed document size of queued letters.
func (q *LetterQueue) CumulativeFileSize(ctx context.Context) (int64, error) {
	q.lock.Lock()
	defer q.lock.Unlock()

	return q.storage.CumulativeSize(ctx)
}

// Contains reports whether a letter with this id is queued.
func (q *LetterQueue) Contains(ctx context.Context, uniqueDocID string) (bool, error) {
	q.lock.Lock()
	defer q.lock.Unlock()

	return q.storage.Contains(ctx, uniqueDocID)
}

// Close closes the underlying storage.
func (q *LetterQueue) Close() error {
	q.lock.Lock()
	defer q.lock.Unlock()

	return q.storage.Close()
}

func (q *LetterQueue) snapshot(ctx context.Context) (QueueSnapshot, error) {

	count, err := q.storage.Count(ctx)
	if err != nil {
		return QueueSnapshot{}, err
	}

	size, err := q.storage.CumulativeSize(ctx)
	if err != nil {
		return QueueSnapshot{}, err
	}

	return QueueSnapshot{Count: count, CumulativeSize: size}, nil
}

// Queue storage types understood by NewQueueStorage.
const (
	MemoryQueueType   = "memory"
	PostgresQueueType = "postgres"
	RedisQueueType    = "redis"
	FileQueueType     = "file"
)

// NewQueueStorage builds the storage selected by config. A nil config or blank type is in-memory.
func NewQueueStorage(ctx context.Context, config *QueueConfig) (QueueStorage, error) {

	if config == nil {
		return NewMemoryStorage(), nil
	}

	switch config.Type {
	case "", MemoryQueueType:
		return NewMemoryStorage(), nil
	case PostgresQueueType:
		return OpenPostgresStorage(ctx, config.DSN, config.Table, config.CompressionConfig, config.EncryptionConfig)
	case RedisQueueType:
		return OpenRedisStorage(ctx, config)
	case FileQueueType:
		return NewFileStorage(config.FilePath, config.CompressionConfig, config.EncryptionConfig)
	default:
		return nil, fmt.Errorf("unknown queue type %q", config.Type)
	}
}
