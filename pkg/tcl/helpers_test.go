package tcl

import (
	"bytes"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/require"
)

const (
	testAPIID  = "TcrTestAccount"
	testAPIKey = "SuperStreetFighter2Turbo"
	apiPath    = "/apis/index.php"
)

// writePDF writes a fake pdf of exactly size bytes (at least the magic header).
func writePDF(t *testing.T, dir, name string, size int) string {
	t.Helper()

	content := []byte("%PDF-1.4\n")
	if size > len(content) {
		content = append(content, bytes.Repeat([]byte("x"), size-len(content))...)
	}

	require.NoError(t, os.MkdirAll(dir, 0o755))

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, content, 0o644))

	return path
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

type fakeSubmission struct {
	Fields      url.Values
	ArchiveName string
	Entries     []string
	Rows        []ManifestRow
}

// fakePrintAPI is an httptest server standing in for the remote print api.
type fakePrintAPI struct {
	server *httptest.Server

	lock         sync.Mutex
	submissions  []*fakeSubmission
	queries      []url.Values
	errs         []error
	submitStatus int
	documentBody []byte
}

func newFakePrintAPI(t *testing.T) *fakePrintAPI {
	t.Helper()

	api := &fakePrintAPI{submitStatus: http.StatusOK}

	router := chi.NewRouter()
	router.Post(apiPath, api.handle)
	api.server = httptest.NewServer(router)
	t.Cleanup(api.server.Close)

	return api
}

func (api *fakePrintAPI) URL() string {
	return api.server.URL + apiPath
}

func (api *fakePrintAPI) setSubmitStatus(status int) {
	api.lock.Lock()
	defer api.lock.Unlock()
	api.submitStatus = status
}

func (api *fakePrintAPI) setDocumentBody(body []byte) {
	api.lock.Lock()
	defer api.lock.Unlock()
	api.documentBody = body
}

func (api *fakePrintAPI) Submissions() []*fakeSubmission {
	api.lock.Lock()
	defer api.lock.Unlock()
	return append([]*fakeSubmission(nil), api.submissions...)
}

func (api *fakePrintAPI) Queries() []url.Values {
	api.lock.Lock()
	defer api.lock.Unlock()
	return append([]url.Values(nil), api.queries...)
}

func (api *fakePrintAPI) Errors() []error {
	api.lock.Lock()
	defer api.lock.Unlock()
	return append([]error(nil), api.errs...)
}

func (api *fakePrintAPI) handle(w http.ResponseWriter, r *http.Request) {

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if strings.HasPrefix(mediaType, "multipart/") {
		api.handleSubmission(w, r)
		return
	}

	if err := r.ParseForm(); err != nil {
		api.fail(w, err)
		return
	}

	api.lock.Lock()
	api.queries = append(api.queries, r.PostForm)
	documentBody := api.documentBody
	api.lock.Unlock()

	if r.PostForm.Get("getinfo") != "" {
		_, _ = w.Write(documentBody)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func (api *fakePrintAPI) handleSubmission(w http.ResponseWriter, r *http.Request) {

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		api.fail(w, err)
		return
	}

	file, header, err := r.FormFile(archiveFieldName)
	if err != nil {
		api.fail(w, err)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		api.fail(w, err)
		return
	}

	archive, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		api.fail(w, err)
		return
	}

	submission := &fakeSubmission{
		Fields:      url.Values(r.MultipartForm.Value),
		ArchiveName: header.Filename,
	}

	for _, entry := range archive.File {
		submission.Entries = append(submission.Entries, entry.Name)
		if !strings.HasSuffix(entry.Name, ".csv") {
			continue
		}

		reader, err := entry.Open()
		if err != nil {
			api.fail(w, err)
			return
		}
		submission.Rows, err = ParseManifest(reader)
		reader.Close()
		if err != nil {
			api.fail(w, err)
			return
		}
	}

	api.lock.Lock()
	api.submissions = append(api.submissions, submission)
	status := api.submitStatus
	api.lock.Unlock()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if status >= 300 {
		_, _ = w.Write([]byte(`{"code":"ERR","message":"rejected"}`))
		return
	}
	_, _ = w.Write([]byte(`{"code":"OK","letters":` + strconv.Itoa(len(submission.Rows)) + `}`))
}

func (api *fakePrintAPI) fail(w http.ResponseWriter, err error) {
	api.lock.Lock()
	api.errs = append(api.errs, err)
	api.lock.Unlock()

	http.Error(w, err.Error(), http.StatusBadRequest)
}

func newTestSeasoning(baseURL string, mode *ModeConfig) *LetterSeasoning {
	return &LetterSeasoning{
		ClientConfig: &ClientConfig{
			APIID:          testAPIID,
			APIKey:         testAPIKey,
			BaseURL:        baseURL,
			RequestTimeout: 5000,
		},
		ModeConfig: mode,
	}
}

func newTestService(
	t *testing.T,
	config *LetterSeasoning,
	storage QueueStorage,
	processReceipt func(*FlushReceipt),
	processError func(error)) *LetterService {
	t.Helper()

	if storage == nil {
		storage = NewMemoryStorage()
	}

	ls, err := NewLetterServiceWithStorage(storage, config, processReceipt, processError)
	require.NoError(t, err)

	ls.SetLogger(discardLogger())
	ls.SetTempDir(t.TempDir())
	t.Cleanup(ls.Shutdown)

	return ls
}
