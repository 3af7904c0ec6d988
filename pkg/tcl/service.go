package tcl

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// FlushError is handed to the interval mode's error callback. It carries the receipt of the
// failed flush, including the letters that were lost when RequeueOnFailure is off.
type FlushError struct {
	Receipt *FlushReceipt
}

func (fe *FlushError) Error() string { return fe.Receipt.ErrorText }

func (fe *FlushError) Unwrap() error { return fe.Receipt.Error }

// LetterService is the struct for containing all you need to queue and submit letters.
type LetterService struct {
	config    *LetterSeasoning
	mode      FlushMode
	queue     *LetterQueue
	validator *LetterValidator
	packager  *BatchPackager
	client    *SubmissionClient
	scheduler *Scheduler

	notifier    ReceiptNotifier
	archiveSink ArchiveSink
	stats       *flushStatsRecorder
	logger      *slog.Logger

	flushLock      *sync.Mutex
	shutdownSignal chan struct{}
	once           sync.Once
}

// NewLetterService creates everything you need to batch letters to the print api: queue storage,
// submission client, receipt notifier and archive retention, all from config.
//
// processReceipt and processError are required when ModeConfig.SendOn is interval, ignored otherwise.
func NewLetterService(
	config *LetterSeasoning,
	processReceipt func(*FlushReceipt),
	processError func(error)) (*LetterService, error) {

	if config == nil {
		return nil, errors.New("config is required")
	}

	ctx := context.Background()
	storage, err := NewQueueStorage(ctx, config.QueueConfig)
	if err != nil {
		return nil, err
	}

	ls, err := NewLetterServiceWithStorage(storage, config, processReceipt, processError)
	if err != nil {
		storage.Close()
		return nil, err
	}

	if config.NotifierConfig != nil && config.NotifierConfig.Enabled {
		notifier, err := DialAMQPNotifier(config.NotifierConfig)
		if err != nil {
			ls.Shutdown()
			return nil, err
		}
		ls.SetReceiptNotifier(notifier)
	}

	if config.ArchiveConfig != nil && config.ArchiveConfig.Enabled {
		sink, err := NewS3ArchiveSinkFromConfig(ctx, config.ArchiveConfig)
		if err != nil {
			ls.Shutdown()
			return nil, err
		}
		ls.SetArchiveSink(sink)
	}

	return ls, nil
}

// NewLetterServiceWithStorage creates a LetterService on top of an existing QueueStorage.
func NewLetterServiceWithStorage(
	storage QueueStorage,
	config *LetterSeasoning,
	processReceipt func(*FlushReceipt),
	processError func(error)) (*LetterService, error) {

	if config == nil {
		return nil, errors.New("config is required")
	}

	client, err := NewSubmissionClient(config.ClientConfig, nil)
	if err != nil {
		return nil, err
	}

	return NewLetterServiceWithClient(client, storage, config, processReceipt, processError)
}

// NewLetterServiceWithClient creates a LetterService from a SubmissionClient and a QueueStorage.
func NewLetterServiceWithClient(
	client *SubmissionClient,
	storage QueueStorage,
	config *LetterSeasoning,
	processReceipt func(*FlushReceipt),
	processError func(error)) (*LetterService, error) {

	if config == nil {
		return nil, errors.New("config is required")
	}

	mode, err := NewFlushMode(config.ModeConfig, processReceipt, processError)
	if err != nil {
		return nil, err
	}

	queue := NewLetterQueue(storage)
	ls := &LetterService{
		config:         config,
		mode:           mode,
		queue:          queue,
		validator:      NewLetterValidator(queue),
		packager:       NewBatchPackager(""),
		client:         client,
		stats:          newFlushStatsRecorder(),
		logger:         slog.Default(),
		flushLock:      &sync.Mutex{},
		shutdownSignal: make(chan struct{}),
	}

	if interval, ok := mode.(OnInterval); ok {
		ls.scheduler = NewScheduler(interval.Every, ls.scheduledFlush)
	}

	return ls, nil
}

// SetLogger replaces the default logger, slog.Default().
func (ls *LetterService) SetLogger(logger *slog.Logger) {
	ls.logger = logger
}

// SetReceiptNotifier forwards every non-empty flush receipt to notifier.
func (ls *LetterService) SetReceiptNotifier(notifier ReceiptNotifier) {
	ls.notifier = notifier
}

// SetArchiveSink retains every packaged archive in sink before submission.
func (ls *LetterService) SetArchiveSink(sink ArchiveSink) {
	ls.archiveSink = sink
}

// SetTempDir changes where batch archives are built.
func (ls *LetterService) SetTempDir(dir string) {
	ls.packager = NewBatchPackager(dir)
}

// Mode returns the configured FlushMode.
func (ls *LetterService) Mode() FlushMode {
	return ls.mode
}

// CreateLetter validates and queues a letter, then flushes when the FlushMode asks for it.
//
// The letter is copied before validation; later changes to it do not reach the queue.
// The receipt is nil when no flush happened. A letter that is already queued is logged and
// dropped without error. In the synchronous modes a failed flush returns its receipt along
// with the error; in interval mode the scheduler is started and results go to the callbacks.
func (ls *LetterService) CreateLetter(ctx context.Context, letter *Letter) (*FlushReceipt, error) {

	if ls.isShutdown() {
		return nil, fmt.Errorf("unable to create letter: %w", ErrServiceShutdown)
	}

	if letter != nil {
		letter = letter.clone()
	}

	if err := ls.validator.Validate(ctx, letter); err != nil {
		if errors.Is(err, ErrDuplicateSkipped) {
			ls.logDuplicate(letter)
			return nil, nil
		}
		return nil, err
	}

	snapshot, err := ls.queue.Enqueue(ctx, letter)
	if err != nil {
		if errors.Is(err, ErrDuplicateSkipped) {
			ls.logDuplicate(letter)
			return nil, nil
		}
		return nil, fmt.Errorf("enqueue letter %s: %w", letter.UniqueDocID, err)
	}

	ls.logger.Debug("letter queued",
		"unique_doc_id", letter.UniqueDocID,
		"queue_count", snapshot.Count,
		"queue_size", snapshot.CumulativeSize)

	if ls.scheduler != nil {
		ls.scheduler.Start()
		return nil, nil
	}

	if !ls.mode.ShouldFlush(snapshot) {
		return nil, nil
	}

	receipt := ls.flush(ctx)
	return receipt, receipt.Error
}

// Flush drains, packages and submits everything queued right now.
// An empty queue returns a receipt with Empty set and sends nothing.
func (ls *LetterService) Flush(ctx context.Context) (*FlushReceipt, error) {

	if ls.isShutdown() {
		return nil, fmt.Errorf("unable to flush: %w", ErrServiceShutdown)
	}

	receipt := ls.flush(ctx)
	return receipt, receipt.Error
}

// QueueCount returns the number of letters waiting for the next flush.
func (ls *LetterService) QueueCount(ctx context.Context) (int, error) {
	return ls.queue.Count(ctx)
}

// QueueFileSize returns the summed document size of letters waiting for the next flush.
func (ls *LetterService) QueueFileSize(ctx context.Context) (int64, error) {
	return ls.queue.CumulativeFileSize(ctx)
}

// BatchStatus looks up batches by id.
func (ls *LetterService) BatchStatus(ctx context.Context, batchIDs ...string) (*Result, error) {
	return ls.client.Query(ctx, BatchStatusQuery, batchIDs...)
}

// JobStatus looks up jobs by id.
func (ls *LetterService) JobStatus(ctx context.Context, jobIDs ...string) (*Result, error) {
	return ls.client.Query(ctx, JobStatusQuery, jobIDs...)
}

// DocumentStatus looks up documents by UniqueDocID.
func (ls *LetterService) DocumentStatus(ctx context.Context, docIDs ...string) (*Result, error) {
	return ls.client.Query(ctx, DocumentStatusQuery, docIDs...)
}

// AccountStatus returns the account summary.
func (ls *LetterService) AccountStatus(ctx context.Context) (*Result, error) {
	return ls.client.Query(ctx, AccountStatusQuery)
}

// GetDocumentProof writes the proof pdf of a document to destPath.
func (ls *LetterService) GetDocumentProof(ctx context.Context, docID, destPath string) error {
	return ls.client.GetDocumentProof(ctx, docID, destPath)
}

// GetSignature writes the signature pdf of a certified mailing to destPath.
func (ls *LetterService) GetSignature(ctx context.Context, cert, destPath string) error {
	return ls.client.GetSignature(ctx, cert, destPath)
}

// Stats returns a copy of the flush counters.
func (ls *LetterService) Stats() *FlushStats {
	return ls.stats.snapshot()
}

// Shutdown stops the scheduler and closes the queue storage and notifier.
// Letters left in an in-memory queue are lost; durable storages keep them.
func (ls *LetterService) Shutdown() {
	ls.once.Do(func() {
		close(ls.shutdownSignal)

		if ls.scheduler != nil {
			ls.scheduler.Stop()
		}

		if err := ls.queue.Close(); err != nil {
			ls.logger.Error("closing queue storage failed", "error", err)
		}

		if ls.notifier != nil {
			if err := ls.notifier.Close(); err != nil {
				ls.logger.Error("closing receipt notifier failed", "error", err)
			}
		}
	})
}

// flush runs one drain, package, submit cycle. Flushes never overlap.
func (ls *LetterService) flush(ctx context.Context) *FlushReceipt {
	ls.flushLock.Lock()
	defer ls.flushLock.Unlock()

	start := time.Now()
	letters, err := ls.queue.Drain(ctx)
	if err != nil {
		receipt := newFlushReceipt(ls.mode, nil)
		receipt.Empty = false
		receipt.fail(fmt.Errorf("drain queue: %w", err), nil, true)
		ls.stats.record(receipt)
		return receipt
	}

	receipt := newFlushReceipt(ls.mode, letters)
	if receipt.Empty {
		ls.stats.record(receipt)
		return receipt
	}

	ls.submit(ctx, receipt, letters)
	receipt.Duration = time.Since(start)
	ls.stats.record(receipt)

	if receipt.Success {
		ls.logger.Info("batch submitted",
			"batch_id", receipt.BatchID,
			"letters", len(receipt.LetterIDs),
			"attachments", receipt.AttachmentCount,
			"duration", receipt.Duration)
	} else {
		ls.logger.Error("batch flush failed",
			"batch_id", receipt.BatchID,
			"letters", len(receipt.LetterIDs),
			"requeued", receipt.Requeued,
			"error", receipt.Error)
	}

	if ls.notifier != nil {
		if err := ls.notifier.Notify(ctx, receipt); err != nil {
			ls.logger.Warn("receipt notification failed", "batch_id", receipt.BatchID, "error", err)
		}
	}

	return receipt
}

func (ls *LetterService) submit(ctx context.Context, receipt *FlushReceipt, letters []*Letter) {

	batch, err := ls.packager.Build(ctx, letters)
	if err != nil {
		var packagingErr *PackagingError
		if errors.As(err, &packagingErr) {
			receipt.BatchID = packagingErr.BatchID
		}
		ls.failFlush(ctx, receipt, err, letters)
		return
	}
	defer func() {
		if err := batch.Cleanup(); err != nil {
			ls.logger.Warn("removing batch temp files failed", "batch_id", batch.BatchID, "error", err)
		}
	}()

	receipt.BatchID = batch.BatchID
	receipt.AttachmentCount = len(batch.Attachments)

	if ls.archiveSink != nil {
		if err := ls.archiveSink.Store(ctx, batch); err != nil {
			ls.logger.Warn("archive retention failed", "batch_id", batch.BatchID, "error", err)
		}
	}

	result, err := ls.client.Submit(ctx, batch)
	if err != nil {
		ls.failFlush(ctx, receipt, err, letters)
		return
	}

	receipt.Success = true
	receipt.Result = result
}

// failFlush records the failure and, with RequeueOnFailure, puts the drained letters back.
func (ls *LetterService) failFlush(ctx context.Context, receipt *FlushReceipt, err error, letters []*Letter) {

	requeued := false
	if ls.config.RequeueOnFailure {
		if requeueErr := ls.queue.Requeue(context.WithoutCancel(ctx), letters); requeueErr != nil {
			ls.logger.Error("requeue after failed flush failed", "error", requeueErr)
		} else {
			requeued = true
		}
	}

	receipt.fail(err, letters, requeued)
}

func (ls *LetterService) scheduledFlush(ctx context.Context) {

	receipt := ls.flush(ctx)
	if receipt.Empty {
		return
	}

	interval := ls.mode.(OnInterval)
	if receipt.Error != nil {
		interval.OnError(&FlushError{Receipt: receipt})
		return
	}

	interval.OnReceipt(receipt)
}

func (ls *LetterService) logDuplicate(letter *Letter) {
	ls.logger.Warn("duplicate letter skipped", "unique_doc_id", letter.UniqueDocID)
}

func (ls *LetterService) isShutdown() bool {

	select {
	case <-ls.shutdownSignal:
		return true
	default:
		return false
	}
}
