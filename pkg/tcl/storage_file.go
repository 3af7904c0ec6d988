package tcl

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
)

const maxJournalLine = 16 * 1024 * 1024

// FileStorage keeps the queue in a JSON-lines journal on local disk.
// An advisory lock file serializes access between processes sharing the journal.
type FileStorage struct {
	path        string
	fileLock    *flock.Flock
	lock        *sync.Mutex
	compression *CompressionConfig
	encryption  *EncryptionConfig
}

type journalRecord struct {
	UniqueDocID string `json:"id"`
	FileSize    int64  `json:"size"`
	Payload     []byte `json:"payload"`
}

// NewFileStorage creates the journal directory when needed and returns a FileStorage.
func NewFileStorage(path string, compression *CompressionConfig, encryption *EncryptionConfig) (*FileStorage, error) {

	if path == "" {
		return nil, errors.New("file queue requires a FilePath")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create journal dir: %w", err)
	}

	if err := encryption.EnsureHashkey(); err != nil {
		return nil, err
	}

	return &FileStorage{
		path:        path,
		fileLock:    flock.New(path + ".lock"),
		lock:        &sync.Mutex{},
		compression: compression,
		encryption:  encryption,
	}, nil
}

// Enqueue appends one journal line.
func (fs *FileStorage) Enqueue(ctx context.Context, letter *Letter) error {

	payload, err := CreatePayload(letter, fs.compression, fs.encryption)
	if err != nil {
		return fmt.Errorf("encode letter %s: %w", letter.UniqueDocID, err)
	}

	line, err := json.Marshal(&journalRecord{
		UniqueDocID: letter.UniqueDocID,
		FileSize:    letter.FileSize,
		Payload:     payload,
	})
	if err != nil {
		return err
	}

	return fs.withLock(func() error {
		file, err := os.OpenFile(fs.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return err
		}

		if _, err := file.Write(append(line, '\n')); err != nil {
			file.Close()
			return err
		}

		return file.Close()
	})
}

// Drain reads the journal and truncates it.
func (fs *FileStorage) Drain(ctx context.Context) ([]*Letter, error) {

	letters := make([]*Letter, 0)
	err := fs.withLock(func() error {
		records, err := fs.readRecords()
		if err != nil {
			return err
		}

		for _, record := range records {
			letter := &Letter{}
			if err := ReadPayload(record.Payload, letter, fs.compression, fs.encryption); err != nil {
				return fmt.Errorf("decode queued letter %s: %w", record.UniqueDocID, err)
			}
			letters = append(letters, letter)
		}

		if err := os.Truncate(fs.path, 0); err != nil && !os.IsNotExist(err) {
			return err
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return letters, nil
}

// Count returns the number of journal lines.
func (fs *FileStorage) Count(ctx context.Context) (int, error) {

	var count int
	err := fs.withLock(func() error {
		records, err := fs.readRecords()
		count = len(records)
		return err
	})

	return count, err
}

// CumulativeSize sums the recorded file sizes.
func (fs *FileStorage) CumulativeSize(ctx context.Context) (int64, error) {

	var size int64
	err := fs.withLock(func() error {
		records, err := fs.readRecords()
		for _, record := range records {
			size += record.FileSize
		}
		return err
	})

	return size, err
}

// Contains scans the journal for the id.
func (fs *FileStorage) Contains(ctx context.Context, uniqueDocID string) (bool, error) {

	var found bool
	err := fs.withLock(func() error {
		records, err := fs.readRecords()
		for _, record := range records {
			if record.UniqueDocID == uniqueDocID {
				found = true
				break
			}
		}
		return err
	})

	return found, err
}

// Close releases the lock file handle.
func (fs *FileStorage) Close() error {
	return fs.fileLock.Close()
}

func (fs *FileStorage) withLock(fn func() error) error {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	if err := fs.fileLock.Lock(); err != nil {
		return fmt.Errorf("lock journal: %w", err)
	}
	defer fs.fileLock.Unlock()

	return fn()
}

func (fs *FileStorage) readRecords() ([]*journalRecord, error) {

	data, err := os.ReadFile(fs.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	records := make([]*journalRecord, 0)
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), maxJournalLine)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}

		record := &journalRecord{}
		if err := json.Unmarshal(line, record); err != nil {
			return nil, fmt.Errorf("corrupt journal line: %w", err)
		}
		records = append(records, record)
	}

	return records, scanner.Err()
}
