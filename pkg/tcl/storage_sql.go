package tcl

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"

	"github.com/lib/pq"
)

// DefaultQueueTable is used when QueueConfig.Table is blank.
const DefaultQueueTable = "letter_queue"

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,62}$`)

// SQLStorage persists queued letters to a PostgreSQL table so the queue survives restarts.
type SQLStorage struct {
	db          *sql.DB
	ownsDB      bool
	table       string
	compression *CompressionConfig
	encryption  *EncryptionConfig
}

// OpenPostgresStorage connects to PostgreSQL and makes sure the queue table exists.
func OpenPostgresStorage(ctx context.Context, dsn, table string, compression *CompressionConfig, encryption *EncryptionConfig) (*SQLStorage, error) {

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	storage, err := NewSQLStorage(db, table, compression, encryption)
	if err != nil {
		db.Close()
		return nil, err
	}
	storage.ownsDB = true

	if err := storage.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return storage, nil
}

// NewSQLStorage wraps an existing database handle. The handle is not closed by Close.
func NewSQLStorage(db *sql.DB, table string, compression *CompressionConfig, encryption *EncryptionConfig) (*SQLStorage, error) {

	if table == "" {
		table = DefaultQueueTable
	}

	if !tableNamePattern.MatchString(table) {
		return nil, fmt.Errorf("invalid queue table name %q", table)
	}

	if err := encryption.EnsureHashkey(); err != nil {
		return nil, err
	}

	return &SQLStorage{
		db:          db,
		table:       pq.QuoteIdentifier(table),
		compression: compression,
		encryption:  encryption,
	}, nil
}

// EnsureSchema creates the queue table when missing.
func (ss *SQLStorage) EnsureSchema(ctx context.Context) error {
	_, err := ss.db.ExecContext(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			seq BIGSERIAL PRIMARY KEY,
			unique_doc_id TEXT NOT NULL UNIQUE,
			file_size BIGINT NOT NULL,
			payload BYTEA NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`, ss.table))
	if err != nil {
		return fmt.Errorf("create queue table: %w", err)
	}
	return nil
}

// Enqueue inserts a letter row.
func (ss *SQLStorage) Enqueue(ctx context.Context, letter *Letter) error {

	payload, err := CreatePayload(letter, ss.compression, ss.encryption)
	if err != nil {
		return fmt.Errorf("encode letter %s: %w", letter.UniqueDocID, err)
	}

	_, err = ss.db.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO %s (unique_doc_id, file_size, payload) VALUES ($1, $2, $3)`, ss.table),
		letter.UniqueDocID, letter.FileSize, payload,
	)
	if err != nil {
		return fmt.Errorf("insert letter %s: %w", letter.UniqueDocID, err)
	}
	return nil
}

// Drain selects and deletes every row in one transaction, oldest first.
func (ss *SQLStorage) Drain(ctx context.Context) ([]*Letter, error) {

	tx, err := ss.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin drain: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx,
		fmt.Sprintf(`SELECT seq, payload FROM %s ORDER BY seq FOR UPDATE`, ss.table))
	if err != nil {
		return nil, fmt.Errorf("select queued letters: %w", err)
	}

	var seqs []int64
	letters := make([]*Letter, 0)
	for rows.Next() {
		var seq int64
		var payload []byte
		if err := rows.Scan(&seq, &payload); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan queued letter: %w", err)
		}

		letter := &Letter{}
		if err := ReadPayload(payload, letter, ss.compression, ss.encryption); err != nil {
			rows.Close()
			return nil, fmt.Errorf("decode queued letter %d: %w", seq, err)
		}

		seqs = append(seqs, seq)
		letters = append(letters, letter)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	if len(seqs) == 0 {
		return letters, tx.Commit()
	}

	if _, err := tx.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE seq = ANY($1)`, ss.table), pq.Array(seqs)); err != nil {
		return nil, fmt.Errorf("delete drained letters: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit drain: %w", err)
	}

	return letters, nil
}

// Count returns the number of queued rows.
func (ss *SQLStorage) Count(ctx context.Context) (int, error) {
	var count int
	err := ss.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, ss.table)).Scan(&count)
	return count, err
}

// CumulativeSize returns the summed file size of queued rows.
func (ss *SQLStorage) CumulativeSize(ctx context.Context) (int64, error) {
	var size int64
	err := ss.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT COALESCE(SUM(file_size), 0) FROM %s`, ss.table)).Scan(&size)
	return size, err
}

// Contains reports whether a row with the id exists.
func (ss *SQLStorage) Contains(ctx context.Context, uniqueDocID string) (bool, error) {
	var exists bool
	err := ss.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT EXISTS(SELECT 1 FROM %s WHERE unique_doc_id = $1)`, ss.table),
		uniqueDocID,
	).Scan(&exists)
	return exists, err
}

// Close closes the database when it was opened by OpenPostgresStorage.
func (ss *SQLStorage) Close() error {
	if ss.ownsDB {
		return ss.db.Close()
	}
	return nil
}
