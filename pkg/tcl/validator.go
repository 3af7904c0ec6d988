package tcl

import (
	"context"
	"os"
	"path/filepath"
)

// LetterValidator checks a raw letter before it may be queued.
type LetterValidator struct {
	queue *LetterQueue
}

// NewLetterValidator creates a validator that checks duplicates against queue.
func NewLetterValidator(queue *LetterQueue) *LetterValidator {
	return &LetterValidator{queue: queue}
}

// Validate checks required fields, duplicates and the document file, in that order.
//
// On success the letter has a UniqueDocID (generated when blank), DocumentFileName is the
// basename of DocumentPath and FileSize is the size of the document.
// A letter already queued yields ErrDuplicateSkipped.
func (lv *LetterValidator) Validate(ctx context.Context, letter *Letter) error {

	if letter == nil {
		return &MissingFieldError{Field: "Letter"}
	}

	if err := checkRequiredFields(letter); err != nil {
		return err
	}

	if letter.UniqueDocID == "" {
		letter.UniqueDocID = GenerateUniqueDocID()
	}

	if lv.queue != nil {
		exists, err := lv.queue.Contains(ctx, letter.UniqueDocID)
		if err != nil {
			return err
		}
		if exists {
			return ErrDuplicateSkipped
		}
	}

	size, err := readableFileSize(letter.DocumentPath)
	if err != nil {
		return &FileNotFoundError{Path: letter.DocumentPath, Err: err}
	}

	letter.FileSize = size
	if letter.DocumentFileName == "" || filepath.Base(letter.DocumentFileName) != letter.DocumentFileName {
		letter.DocumentFileName = filepath.Base(letter.DocumentPath)
	}

	return nil
}

func checkRequiredFields(letter *Letter) error {

	required := []struct {
		name  string
		value string
	}{
		{"MailType", letter.MailType},
		{"DocumentPath", letter.DocumentPath},
	}

	for _, field := range required {
		if field.value == "" {
			return &MissingFieldError{Field: field.name}
		}
	}

	if letter.PageCount <= 0 {
		return &MissingFieldError{Field: "PageCount"}
	}

	if err := checkAddress("Recipient", letter.Recipient); err != nil {
		return err
	}

	return checkAddress("Sender", letter.Sender)
}

func checkAddress(prefix string, address *Address) error {

	if address == nil {
		return &MissingFieldError{Field: prefix}
	}

	fields := []struct {
		name  string
		value string
	}{
		{"Name1", address.Name1},
		{"Addr1", address.Addr1},
		{"City", address.City},
		{"State", address.State},
		{"Zip", address.Zip},
	}

	for _, field := range fields {
		if field.value == "" {
			return &MissingFieldError{Field: prefix + field.name}
		}
	}

	return nil
}

// readableFileSize opens the file to prove it is readable and returns its size.
func readableFileSize(path string) (int64, error) {

	file, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return 0, err
	}

	if info.IsDir() {
		return 0, os.ErrInvalid
	}

	return info.Size(), nil
}
