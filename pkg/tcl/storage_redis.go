package tcl

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisKeyPrefix is used when QueueConfig.KeyPrefix is blank.
const DefaultRedisKeyPrefix = "tcl:queue"

// RedisStorage keeps the queue in a Redis list, with an id set and a size counter next to it.
type RedisStorage struct {
	client      redis.UniversalClient
	ownsClient  bool
	lettersKey  string
	idsKey      string
	sizeKey     string
	compression *CompressionConfig
	encryption  *EncryptionConfig
}

// OpenRedisStorage connects to Redis and verifies the connection.
func OpenRedisStorage(ctx context.Context, config *QueueConfig) (*RedisStorage, error) {

	client := redis.NewClient(&redis.Options{
		Addr:     config.RedisAddr,
		Password: config.RedisPassword,
		DB:       config.RedisDB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	storage, err := NewRedisStorage(client, config.KeyPrefix, config.CompressionConfig, config.EncryptionConfig)
	if err != nil {
		client.Close()
		return nil, err
	}
	storage.ownsClient = true

	return storage, nil
}

// NewRedisStorage wraps an existing client. The client is not closed by Close.
func NewRedisStorage(client redis.UniversalClient, keyPrefix string, compression *CompressionConfig, encryption *EncryptionConfig) (*RedisStorage, error) {

	if keyPrefix == "" {
		keyPrefix = DefaultRedisKeyPrefix
	}

	if err := encryption.EnsureHashkey(); err != nil {
		return nil, err
	}

	return &RedisStorage{
		client:      client,
		lettersKey:  keyPrefix + ":letters",
		idsKey:      keyPrefix + ":ids",
		sizeKey:     keyPrefix + ":size",
		compression: compression,
		encryption:  encryption,
	}, nil
}

// Enqueue pushes the letter to the tail of the list.
func (rs *RedisStorage) Enqueue(ctx context.Context, letter *Letter) error {

	payload, err := CreatePayload(letter, rs.compression, rs.encryption)
	if err != nil {
		return fmt.Errorf("encode letter %s: %w", letter.UniqueDocID, err)
	}

	_, err = rs.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, rs.lettersKey, payload)
		pipe.SAdd(ctx, rs.idsKey, letter.UniqueDocID)
		pipe.IncrBy(ctx, rs.sizeKey, letter.FileSize)
		return nil
	})
	if err != nil {
		return fmt.Errorf("push letter %s: %w", letter.UniqueDocID, err)
	}

	return nil
}

// Drain reads and deletes the list in a single MULTI/EXEC.
func (rs *RedisStorage) Drain(ctx context.Context) ([]*Letter, error) {

	var payloads *redis.StringSliceCmd
	_, err := rs.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		payloads = pipe.LRange(ctx, rs.lettersKey, 0, -1)
		pipe.Del(ctx, rs.lettersKey, rs.idsKey, rs.sizeKey)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("drain redis queue: %w", err)
	}

	letters := make([]*Letter, 0, len(payloads.Val()))
	for i, payload := range payloads.Val() {
		letter := &Letter{}
		if err := ReadPayload([]byte(payload), letter, rs.compression, rs.encryption); err != nil {
			return nil, fmt.Errorf("decode queued letter %d: %w", i, err)
		}
		letters = append(letters, letter)
	}

	return letters, nil
}

// Count returns the list length.
func (rs *RedisStorage) Count(ctx context.Context) (int, error) {
	count, err := rs.client.LLen(ctx, rs.lettersKey).Result()
	return int(count), err
}

// CumulativeSize returns the size counter, zero when absent.
func (rs *RedisStorage) CumulativeSize(ctx context.Context) (int64, error) {

	size, err := rs.client.Get(ctx, rs.sizeKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}

	return size, err
}

// Contains checks the id set.
func (rs *RedisStorage) Contains(ctx context.Context, uniqueDocID string) (bool, error) {
	return rs.client.SIsMember(ctx, rs.idsKey, uniqueDocID).Result()
}

// Close closes the client when it was opened by OpenRedisStorage.
func (rs *RedisStorage) Close() error {
	if rs.ownsClient {
		return rs.client.Close()
	}
	return nil
}
