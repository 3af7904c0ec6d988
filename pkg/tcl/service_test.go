package tcl

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountModeEndToEnd(t *testing.T) {

	ctx := context.Background()
	api := newFakePrintAPI(t)
	ls := newTestService(t, newTestSeasoning(api.URL(), &ModeConfig{SendOn: SendOnFileCountLimit, Value: 2}), nil, nil, nil)

	dir := t.TempDir()
	first := writePDF(t, dir, "first.pdf", 300)
	second := writePDF(t, dir, "second.pdf", 400)

	receipt, err := ls.CreateLetter(ctx, CreateMockLetter("A", first))
	require.NoError(t, err)
	assert.Nil(t, receipt)
	assert.Empty(t, api.Submissions())

	count, err := ls.QueueCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	size, err := ls.QueueFileSize(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(300), size)

	receipt, err = ls.CreateLetter(ctx, CreateMockLetter("B", second))
	require.NoError(t, err)
	require.NotNil(t, receipt)
	assert.True(t, receipt.Success)
	assert.Equal(t, []string{"A", "B"}, receipt.LetterIDs)
	assert.Equal(t, 2, receipt.AttachmentCount)
	assert.NotNil(t, receipt.Result)

	require.Empty(t, api.Errors())
	submissions := api.Submissions()
	require.Len(t, submissions, 1)
	assert.Len(t, submissions[0].Rows, 2)
	assert.LessOrEqual(t, len(submissions[0].Entries)-1, 2)
	assert.Equal(t, receipt.BatchID+".zip", submissions[0].ArchiveName)

	count, err = ls.QueueCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	size, err = ls.QueueFileSize(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), size)
}

func TestCreateModeFlushesEveryLetter(t *testing.T) {

	ctx := context.Background()
	api := newFakePrintAPI(t)
	ls := newTestService(t, newTestSeasoning(api.URL(), nil), nil, nil, nil)

	dir := t.TempDir()
	for _, name := range []string{"a.pdf", "b.pdf", "c.pdf"} {
		receipt, err := ls.CreateLetter(ctx, CreateMockLetter("", writePDF(t, dir, name, 64)))
		require.NoError(t, err)
		require.NotNil(t, receipt)
		assert.Len(t, receipt.LetterIDs, 1)
	}

	assert.Len(t, api.Submissions(), 3)

	stats := ls.Stats()
	assert.Equal(t, int64(3), stats.Flushes)
	assert.Equal(t, int64(3), stats.LettersSubmitted)
	assert.Equal(t, int64(0), stats.FailedFlushes)
}

func TestSizeModeFlushesWhenExceeded(t *testing.T) {

	ctx := context.Background()
	api := newFakePrintAPI(t)
	ls := newTestService(t, newTestSeasoning(api.URL(), &ModeConfig{SendOn: SendOnFileSizeLimit, Value: 1000}), nil, nil, nil)

	dir := t.TempDir()

	receipt, err := ls.CreateLetter(ctx, CreateMockLetter("A", writePDF(t, dir, "a.pdf", 500)))
	require.NoError(t, err)
	assert.Nil(t, receipt)

	receipt, err = ls.CreateLetter(ctx, CreateMockLetter("B", writePDF(t, dir, "b.pdf", 500)))
	require.NoError(t, err)
	assert.Nil(t, receipt, "reaching the limit exactly does not flush")

	receipt, err = ls.CreateLetter(ctx, CreateMockLetter("C", writePDF(t, dir, "c.pdf", 1)))
	require.NoError(t, err)
	require.NotNil(t, receipt)
	assert.Equal(t, []string{"A", "B", "C"}, receipt.LetterIDs)
	assert.Len(t, api.Submissions(), 1)
}

func TestIntervalModeUsesCallbacks(t *testing.T) {

	ctx := context.Background()
	api := newFakePrintAPI(t)

	receipts := make(chan *FlushReceipt, 4)
	errs := make(chan error, 4)

	config := newTestSeasoning(api.URL(), &ModeConfig{SendOn: SendOnInterval, Value: 1})
	ls := newTestService(t, config,
		nil,
		func(receipt *FlushReceipt) { receipts <- receipt },
		func(err error) { errs <- err })

	dir := t.TempDir()
	for _, id := range []string{"A", "B"} {
		receipt, err := ls.CreateLetter(ctx, CreateMockLetter(id, writePDF(t, dir, id+".pdf", 64)))
		require.NoError(t, err)
		assert.Nil(t, receipt)
	}

	select {
	case receipt := <-receipts:
		assert.True(t, receipt.Success)
		assert.Equal(t, []string{"A", "B"}, receipt.LetterIDs)
	case err := <-errs:
		t.Fatalf("unexpected flush error: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("scheduled flush never happened")
	}

	// further ticks find an empty queue and stay silent
	time.Sleep(1500 * time.Millisecond)
	assert.Empty(t, receipts)
	assert.Empty(t, errs)
	assert.Len(t, api.Submissions(), 1)
}

func TestIntervalModeReportsFailure(t *testing.T) {

	ctx := context.Background()
	api := newFakePrintAPI(t)
	api.setSubmitStatus(http.StatusInternalServerError)

	errs := make(chan error, 4)
	config := newTestSeasoning(api.URL(), &ModeConfig{SendOn: SendOnInterval, Value: 1})
	ls := newTestService(t, config, nil, func(*FlushReceipt) {}, func(err error) { errs <- err })

	_, err := ls.CreateLetter(ctx, CreateMockLetter("A", writePDF(t, t.TempDir(), "a.pdf", 64)))
	require.NoError(t, err)

	select {
	case err := <-errs:
		var flushErr *FlushError
		require.True(t, errors.As(err, &flushErr))
		assert.Equal(t, []string{"A"}, flushErr.Receipt.LetterIDs)
		require.Len(t, flushErr.Receipt.FailedLetters, 1)

		var submissionErr *SubmissionError
		require.True(t, errors.As(err, &submissionErr))
		assert.Equal(t, http.StatusInternalServerError, submissionErr.StatusCode)
	case <-time.After(5 * time.Second):
		t.Fatal("error callback never called")
	}
}

func TestIntervalModeRequiresCallbacks(t *testing.T) {

	config := newTestSeasoning("http://localhost", &ModeConfig{SendOn: SendOnInterval, Value: 5})

	_, err := NewLetterServiceWithStorage(nil, config, nil, nil)
	assert.ErrorIs(t, err, ErrCallbacksRequired)
}

func TestFailedFlushWithoutRequeueLosesLetters(t *testing.T) {

	ctx := context.Background()
	api := newFakePrintAPI(t)
	api.setSubmitStatus(http.StatusBadGateway)
	ls := newTestService(t, newTestSeasoning(api.URL(), nil), nil, nil, nil)

	receipt, err := ls.CreateLetter(ctx, CreateMockLetter("A", writePDF(t, t.TempDir(), "a.pdf", 64)))
	require.Error(t, err)
	require.NotNil(t, receipt)
	assert.False(t, receipt.Success)
	assert.False(t, receipt.Requeued)
	assert.Len(t, receipt.FailedLetters, 1)

	count, err := ls.QueueCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	stats := ls.Stats()
	assert.Equal(t, int64(1), stats.FailedFlushes)
	assert.Equal(t, int64(1), stats.LettersLost)
}

func TestFailedFlushRequeues(t *testing.T) {

	ctx := context.Background()
	api := newFakePrintAPI(t)
	api.setSubmitStatus(http.StatusServiceUnavailable)

	config := newTestSeasoning(api.URL(), &ModeConfig{SendOn: SendOnFileCountLimit, Value: 2})
	config.RequeueOnFailure = true
	ls := newTestService(t, config, nil, nil, nil)

	dir := t.TempDir()
	_, err := ls.CreateLetter(ctx, CreateMockLetter("A", writePDF(t, dir, "a.pdf", 64)))
	require.NoError(t, err)

	receipt, err := ls.CreateLetter(ctx, CreateMockLetter("B", writePDF(t, dir, "b.pdf", 64)))
	require.Error(t, err)
	assert.True(t, receipt.Requeued)
	assert.Empty(t, receipt.FailedLetters)

	count, err := ls.QueueCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	api.setSubmitStatus(http.StatusOK)
	receipt, err = ls.Flush(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, receipt.LetterIDs)
	assert.Len(t, api.Submissions(), 2)
}

func TestPackagingFailureFailsFlush(t *testing.T) {

	ctx := context.Background()
	api := newFakePrintAPI(t)
	ls := newTestService(t, newTestSeasoning(api.URL(), &ModeConfig{SendOn: SendOnFileCountLimit, Value: 2}), nil, nil, nil)

	_, err := ls.CreateLetter(ctx, CreateMockLetter("A", writePDF(t, filepath.Join(t.TempDir(), "x"), "same.pdf", 64)))
	require.NoError(t, err)

	receipt, err := ls.CreateLetter(ctx, CreateMockLetter("B", writePDF(t, filepath.Join(t.TempDir(), "y"), "same.pdf", 64)))
	assert.ErrorIs(t, err, ErrDuplicateFileName)
	require.NotNil(t, receipt)
	assert.NotEmpty(t, receipt.BatchID)
	assert.Empty(t, api.Submissions())
}

func TestDuplicateLetterIsSkipped(t *testing.T) {

	ctx := context.Background()
	api := newFakePrintAPI(t)
	ls := newTestService(t, newTestSeasoning(api.URL(), &ModeConfig{SendOn: SendOnFileCountLimit, Value: 5}), nil, nil, nil)

	path := writePDF(t, t.TempDir(), "a.pdf", 64)

	receipt, err := ls.CreateLetter(ctx, CreateMockLetter("A", path))
	require.NoError(t, err)
	assert.Nil(t, receipt)

	receipt, err = ls.CreateLetter(ctx, CreateMockLetter("A", path))
	require.NoError(t, err)
	assert.Nil(t, receipt)

	count, err := ls.QueueCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestInvalidLetterIsNotQueued(t *testing.T) {

	ctx := context.Background()
	api := newFakePrintAPI(t)
	ls := newTestService(t, newTestSeasoning(api.URL(), &ModeConfig{SendOn: SendOnFileCountLimit, Value: 5}), nil, nil, nil)

	letter := CreateMockLetter("A", writePDF(t, t.TempDir(), "a.pdf", 64))
	letter.Recipient.Zip = ""

	_, err := ls.CreateLetter(ctx, letter)

	var missing *MissingFieldError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, "RecipientZip", missing.Field)

	count, err := ls.QueueCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestConcurrentCreateLetter(t *testing.T) {

	ctx := context.Background()
	api := newFakePrintAPI(t)
	ls := newTestService(t, newTestSeasoning(api.URL(), &ModeConfig{SendOn: SendOnFileCountLimit, Value: 10}), nil, nil, nil)

	dir := t.TempDir()
	wg := &sync.WaitGroup{}
	for i := 0; i < 40; i++ {
		id := strconv.Itoa(i)
		path := writePDF(t, dir, "doc-"+id+".pdf", 64)

		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := ls.CreateLetter(ctx, CreateMockLetter(id, path))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	_, err := ls.Flush(ctx)
	require.NoError(t, err)

	total := 0
	for _, submission := range api.Submissions() {
		total += len(submission.Rows)
	}
	assert.Equal(t, 40, total)
}

func TestFlushEmptyQueue(t *testing.T) {

	api := newFakePrintAPI(t)
	ls := newTestService(t, newTestSeasoning(api.URL(), nil), nil, nil, nil)

	receipt, err := ls.Flush(context.Background())
	require.NoError(t, err)
	assert.True(t, receipt.Empty)
	assert.Empty(t, api.Submissions())
	assert.Equal(t, int64(1), ls.Stats().EmptyFlushes)
}

func TestStatusLookups(t *testing.T) {

	ctx := context.Background()
	api := newFakePrintAPI(t)
	api.setDocumentBody([]byte("%PDF-1.4 proof"))
	ls := newTestService(t, newTestSeasoning(api.URL(), nil), nil, nil, nil)

	_, err := ls.BatchStatus(ctx, "batch")
	require.NoError(t, err)
	_, err = ls.JobStatus(ctx, "job")
	require.NoError(t, err)
	_, err = ls.DocumentStatus(ctx, "doc")
	require.NoError(t, err)
	_, err = ls.AccountStatus(ctx)
	require.NoError(t, err)
	require.NoError(t, ls.GetDocumentProof(ctx, "doc", filepath.Join(t.TempDir(), "proof.pdf")))
	require.NoError(t, ls.GetSignature(ctx, "cert", filepath.Join(t.TempDir(), "sig.pdf")))

	assert.Len(t, api.Queries(), 6)
}

func TestShutdown(t *testing.T) {

	api := newFakePrintAPI(t)
	ls := newTestService(t, newTestSeasoning(api.URL(), nil), nil, nil, nil)

	ls.Shutdown()
	ls.Shutdown()

	_, err := ls.CreateLetter(context.Background(), CreateMockLetter("A", "/nowhere.pdf"))
	assert.ErrorIs(t, err, ErrServiceShutdown)

	_, err = ls.Flush(context.Background())
	assert.ErrorIs(t, err, ErrServiceShutdown)
}

func TestFileStorageSurvivesRestart(t *testing.T) {

	ctx := context.Background()
	api := newFakePrintAPI(t)
	journal := filepath.Join(t.TempDir(), "letters.jsonl")
	config := newTestSeasoning(api.URL(), &ModeConfig{SendOn: SendOnFileCountLimit, Value: 2})

	storage, err := NewFileStorage(journal, nil, nil)
	require.NoError(t, err)
	first := newTestService(t, config, storage, nil, nil)

	_, err = first.CreateLetter(ctx, CreateMockLetter("A", writePDF(t, t.TempDir(), "a.pdf", 64)))
	require.NoError(t, err)
	first.Shutdown()

	storage, err = NewFileStorage(journal, nil, nil)
	require.NoError(t, err)
	second := newTestService(t, config, storage, nil, nil)

	receipt, err := second.CreateLetter(ctx, CreateMockLetter("B", writePDF(t, t.TempDir(), "b.pdf", 64)))
	require.NoError(t, err)
	require.NotNil(t, receipt)
	assert.Equal(t, []string{"A", "B"}, receipt.LetterIDs)
}

func TestCreateLetterCopiesCallerLetter(t *testing.T) {

	ctx := context.Background()
	api := newFakePrintAPI(t)
	ls := newTestService(t, newTestSeasoning(api.URL(), &ModeConfig{SendOn: SendOnFileCountLimit, Value: 2}), nil, nil, nil)

	dir := t.TempDir()
	letter := CreateMockLetter("A", writePDF(t, dir, "a.pdf", 64))

	receipt, err := ls.CreateLetter(ctx, letter)
	require.NoError(t, err)
	assert.Nil(t, receipt)

	letter.UniqueDocID = "B"
	letter.DocumentPath = writePDF(t, dir, "b.pdf", 64)
	letter.DocumentFileName = ""
	letter.Recipient.Name1 = "Vega"

	receipt, err = ls.CreateLetter(ctx, letter)
	require.NoError(t, err)
	require.NotNil(t, receipt)
	assert.Equal(t, []string{"A", "B"}, receipt.LetterIDs)

	submissions := api.Submissions()
	require.Len(t, submissions, 1)
	require.Len(t, submissions[0].Rows, 2)
	assert.Equal(t, "a.pdf", submissions[0].Rows[0].PDFFileName)
	assert.Equal(t, "M. Bison", submissions[0].Rows[0].Recipient.Name1)
	assert.Equal(t, "b.pdf", submissions[0].Rows[1].PDFFileName)
	assert.Equal(t, "Vega", submissions[0].Rows[1].Recipient.Name1)
}

func TestDefaultLoggerIsSlogDefault(t *testing.T) {

	ls, err := NewLetterServiceWithStorage(nil, newTestSeasoning("http://localhost", nil), nil, nil)
	require.NoError(t, err)
	defer ls.Shutdown()

	assert.Same(t, slog.Default(), ls.logger)
}
