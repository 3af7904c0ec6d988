package tcl

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultBaseURL is the print api endpoint used when ClientConfig.BaseURL is blank.
	DefaultBaseURL = "https://www.letterstream.com/apis/index.php"

	// DefaultRequestTimeout bounds every request when ClientConfig.RequestTimeout is zero.
	DefaultRequestTimeout = 60 * time.Second

	archiveFieldName = "multi_file"
	responseFormat   = "json"
)

var pdfMagic = []byte("%PDF")

// QueryKind selects a status lookup.
type QueryKind string

// Status lookups supported by Query.
const (
	BatchStatusQuery    QueryKind = "batchstatus"
	JobStatusQuery      QueryKind = "jobstatus"
	DocumentStatusQuery QueryKind = "docstatus"
	AccountStatusQuery  QueryKind = "accountstatus"
)

// HTTPDoer is the interface for executing HTTP requests. *http.Client satisfies it.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Result is a successful api response.
type Result struct {
	StatusCode int
	Body       []byte
	Data       interface{} // decoded JSON body
}

// Decode unmarshals the JSON body into v.
func (r *Result) Decode(v interface{}) error {
	return json.Unmarshal(r.Body, v)
}

// SubmissionClient sends packaged batches and lookups to the print api.
// It holds no per-request state and is safe for concurrent use.
type SubmissionClient struct {
	httpClient HTTPDoer
	baseURL    string
	accountID  string
	signer     Signer
	debug      int
	timeout    time.Duration
	nonce      func() string
}

// NewSubmissionClient creates a SubmissionClient. A nil httpClient gets a dedicated *http.Client.
func NewSubmissionClient(config *ClientConfig, httpClient HTTPDoer) (*SubmissionClient, error) {

	if config == nil {
		return nil, ErrMissingCredentials
	}

	id, key, err := config.credentials()
	if err != nil {
		return nil, err
	}

	if config.Debug < 0 || config.Debug > 3 {
		return nil, fmt.Errorf("debug must be 0, 1, 2 or 3, got %d", config.Debug)
	}

	timeout := DefaultRequestTimeout
	if config.RequestTimeout > 0 {
		timeout = time.Duration(config.RequestTimeout) * time.Millisecond
	}

	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}

	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	return &SubmissionClient{
		httpClient: httpClient,
		baseURL:    baseURL,
		accountID:  id,
		signer:     NewLetterStreamSigner(key),
		debug:      config.Debug,
		timeout:    timeout,
		nonce:      NewNonce,
	}, nil
}

// SetSigner replaces the default LetterStreamSigner.
func (sc *SubmissionClient) SetSigner(signer Signer) {
	sc.signer = signer
}

// Submit uploads the batch archive as a multipart form.
func (sc *SubmissionClient) Submit(ctx context.Context, batch *PackagedBatch) (*Result, error) {

	ctx, cancel := context.WithTimeout(ctx, sc.timeout)
	defer cancel()

	archive, err := os.Open(batch.ArchivePath)
	if err != nil {
		return nil, &SubmissionError{Err: fmt.Errorf("open archive: %w", err)}
	}
	defer archive.Close()

	bodyReader, bodyWriter := io.Pipe()
	form := multipart.NewWriter(bodyWriter)

	written := make(chan struct{})
	go func() {
		defer close(written)
		bodyWriter.CloseWithError(sc.writeArchiveForm(form, batch.ArchiveName, archive))
	}()

	// the writer must be unblocked and finished before the archive is closed,
	// even when the doer never reads the body
	defer func() {
		bodyReader.Close()
		<-written
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sc.baseURL, bodyReader)
	if err != nil {
		return nil, &SubmissionError{Err: err}
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	return sc.doJSON(req)
}

func (sc *SubmissionClient) writeArchiveForm(form *multipart.Writer, archiveName string, archive io.Reader) error {

	for key, values := range sc.authFields() {
		for _, value := range values {
			if err := form.WriteField(key, value); err != nil {
				return err
			}
		}
	}

	part, err := form.CreateFormFile(archiveFieldName, archiveName)
	if err != nil {
		return err
	}

	if _, err := io.Copy(part, archive); err != nil {
		return err
	}

	return form.Close()
}

// Query runs a status lookup for the given ids. Each id is escaped before the ids are comma joined.
func (sc *SubmissionClient) Query(ctx context.Context, kind QueryKind, ids ...string) (*Result, error) {

	escaped := make([]string, 0, len(ids))
	for _, id := range ids {
		escaped = append(escaped, url.QueryEscape(id))
	}

	value := strings.Join(escaped, ",")
	if kind == AccountStatusQuery && value == "" {
		value = "1"
	}

	if value == "" {
		return nil, fmt.Errorf("%s lookup requires at least one id", kind)
	}

	fields := sc.authFields()
	fields.Set(string(kind), value)

	ctx, cancel := context.WithTimeout(ctx, sc.timeout)
	defer cancel()

	req, err := sc.newFormRequest(ctx, fields)
	if err != nil {
		return nil, err
	}

	return sc.doJSON(req)
}

// GetDocumentProof downloads the proof pdf of a document to destPath.
func (sc *SubmissionClient) GetDocumentProof(ctx context.Context, docID, destPath string) error {
	return sc.retrieveDocument(ctx, "doc_id", docID, "proof", destPath)
}

// GetSignature downloads the delivery signature of a certified mailing to destPath.
func (sc *SubmissionClient) GetSignature(ctx context.Context, cert, destPath string) error {
	return sc.retrieveDocument(ctx, "cert", cert, "signature", destPath)
}

func (sc *SubmissionClient) retrieveDocument(ctx context.Context, idField, id, info, destPath string) error {

	if id == "" || destPath == "" {
		return fmt.Errorf("%s and destination path are required", idField)
	}

	fields := sc.authFields()
	fields.Set(idField, id)
	fields.Set("getinfo", info)

	ctx, cancel := context.WithTimeout(ctx, sc.timeout)
	defer cancel()

	req, err := sc.newFormRequest(ctx, fields)
	if err != nil {
		return err
	}

	statusCode, body, err := sc.do(req)
	if err != nil {
		return err
	}

	if !isSuccess(statusCode) {
		return &SubmissionError{StatusCode: statusCode, Body: body}
	}

	document, err := decodeDocument(body)
	if err != nil {
		return err
	}

	return os.WriteFile(destPath, document, 0o644)
}

// decodeDocument returns the pdf bytes of body, base64 decoding it when it is not raw pdf.
func decodeDocument(body []byte) ([]byte, error) {

	if bytes.HasPrefix(body, pdfMagic) {
		return body, nil
	}

	decoded, err := base64.StdEncoding.DecodeString(string(bytes.TrimSpace(body)))
	if err != nil || !bytes.HasPrefix(decoded, pdfMagic) {
		return nil, ErrInvalidDocumentFormat
	}

	return decoded, nil
}

func (sc *SubmissionClient) authFields() url.Values {

	nonce := sc.nonce()

	fields := url.Values{}
	fields.Set("a", sc.accountID)
	fields.Set("h", sc.signer.Sign(nonce))
	fields.Set("t", nonce)
	fields.Set("responseformat", responseFormat)
	if sc.debug > 0 {
		fields.Set("debug", strconv.Itoa(sc.debug))
	}

	return fields
}

func (sc *SubmissionClient) newFormRequest(ctx context.Context, fields url.Values) (*http.Request, error) {

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sc.baseURL, strings.NewReader(fields.Encode()))
	if err != nil {
		return nil, &SubmissionError{Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	return req, nil
}

func (sc *SubmissionClient) doJSON(req *http.Request) (*Result, error) {

	statusCode, body, err := sc.do(req)
	if err != nil {
		return nil, err
	}

	if !isSuccess(statusCode) {
		return nil, &SubmissionError{StatusCode: statusCode, Body: body}
	}

	result := &Result{StatusCode: statusCode, Body: body}
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &result.Data); err != nil {
			return nil, &SubmissionError{StatusCode: statusCode, Body: body, Err: fmt.Errorf("decode response: %w", err)}
		}
	}

	return result, nil
}

func (sc *SubmissionClient) do(req *http.Request) (int, []byte, error) {

	resp, err := sc.httpClient.Do(req)
	if err != nil {
		return 0, nil, &SubmissionError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, &SubmissionError{StatusCode: resp.StatusCode, Err: fmt.Errorf("read response: %w", err)}
	}

	return resp.StatusCode, body, nil
}

func isSuccess(statusCode int) bool {
	return statusCode >= 200 && statusCode < 300
}
