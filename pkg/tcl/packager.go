package tcl

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zip"
)

// PackagedBatch is a drained set of letters bundled into a zip archive on disk.
// The archive belongs to one flush; call Cleanup once it is no longer needed.
type PackagedBatch struct {
	BatchID      string
	Letters      []*Letter
	Rows         []ManifestRow
	Attachments  []string // unique document paths, in first-seen order
	ManifestName string
	ArchiveName  string
	ArchivePath  string

	dir string
}

// Cleanup removes the batch's temp directory. Safe to call more than once.
func (pb *PackagedBatch) Cleanup() error {
	if pb == nil || pb.dir == "" {
		return nil
	}

	err := os.RemoveAll(pb.dir)
	pb.dir = ""
	return err
}

// BatchPackager builds PackagedBatches inside TempDir (os.TempDir when blank).
type BatchPackager struct {
	TempDir string
}

// NewBatchPackager creates a BatchPackager.
func NewBatchPackager(tempDir string) *BatchPackager {
	return &BatchPackager{TempDir: tempDir}
}

// Build writes the manifest and every unique attachment into one archive.
// Any failure removes the partial output and returns a *PackagingError.
func (bp *BatchPackager) Build(ctx context.Context, letters []*Letter) (*PackagedBatch, error) {

	batch := &PackagedBatch{
		BatchID: uuid.New().String(),
		Letters: letters,
		Rows:    make([]ManifestRow, 0, len(letters)),
	}
	batch.ManifestName = batch.BatchID + ".csv"
	batch.ArchiveName = batch.BatchID + ".zip"

	if err := bp.build(ctx, batch); err != nil {
		_ = batch.Cleanup()
		return nil, &PackagingError{BatchID: batch.BatchID, Err: err}
	}

	return batch, nil
}

func (bp *BatchPackager) build(ctx context.Context, batch *PackagedBatch) error {

	entryNames := make(map[string]string) // archive entry name -> document path
	var entries []string
	for _, letter := range batch.Letters {
		batch.Rows = append(batch.Rows, NewManifestRow(letter))

		name := letter.DocumentFileName
		if name == "" {
			name = filepath.Base(letter.DocumentPath)
		}

		if path, ok := entryNames[name]; ok {
			if path != letter.DocumentPath {
				return fmt.Errorf("%w: %s (%s, %s)", ErrDuplicateFileName, name, path, letter.DocumentPath)
			}
			continue
		}

		entryNames[name] = letter.DocumentPath
		entries = append(entries, name)
		batch.Attachments = append(batch.Attachments, letter.DocumentPath)
	}

	manifest := &bytes.Buffer{}
	if err := WriteManifest(manifest, batch.Rows); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}

	dir, err := os.MkdirTemp(bp.TempDir, "tcl-batch-")
	if err != nil {
		return fmt.Errorf("create temp dir: %w", err)
	}
	batch.dir = dir
	batch.ArchivePath = filepath.Join(dir, batch.ArchiveName)

	archive, err := os.Create(batch.ArchivePath)
	if err != nil {
		return fmt.Errorf("create archive: %w", err)
	}
	defer archive.Close()

	zipWriter := zip.NewWriter(archive)
	if err := addZipEntry(zipWriter, batch.ManifestName, manifest); err != nil {
		return err
	}

	for _, name := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := addZipFile(zipWriter, name, entryNames[name]); err != nil {
			return err
		}
	}

	if err := zipWriter.Close(); err != nil {
		return fmt.Errorf("finish archive: %w", err)
	}

	return archive.Sync()
}

func addZipFile(zipWriter *zip.Writer, name, path string) error {

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open attachment: %w", err)
	}
	defer file.Close()

	return addZipEntry(zipWriter, name, file)
}

func addZipEntry(zipWriter *zip.Writer, name string, content io.Reader) error {

	entry, err := zipWriter.CreateHeader(&zip.FileHeader{
		Name:   name,
		Method: zip.Deflate,
	})
	if err != nil {
		return fmt.Errorf("create archive entry %s: %w", name, err)
	}

	if _, err := io.Copy(entry, content); err != nil {
		return fmt.Errorf("write archive entry %s: %w", name, err)
	}

	return nil
}
