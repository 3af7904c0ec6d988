package tcl

import (
	"fmt"
	"time"
)

// FlushReceipt reports the outcome of one flush.
type FlushReceipt struct {
	BatchID         string        `json:"BatchID"`
	Mode            string        `json:"Mode"`
	LetterIDs       []string      `json:"LetterIDs"`
	AttachmentCount int           `json:"AttachmentCount"`
	Success         bool          `json:"Success"`
	Empty           bool          `json:"Empty"`
	Requeued        bool          `json:"Requeued"`
	Duration        time.Duration `json:"Duration"`
	Result          *Result       `json:"-"`
	Error           error         `json:"-"`
	ErrorText       string        `json:"Error,omitempty"`

	// FailedLetters holds the drained letters when the flush failed and they were not requeued.
	FailedLetters []*Letter `json:"-"`
}

// ToString allows you to quickly log the FlushReceipt struct as a string.
func (fr *FlushReceipt) ToString() string {

	switch {
	case fr.Empty:
		return "[Batch: none] - Queue was empty, nothing to flush.\r\n"
	case fr.Success:
		return fmt.Sprintf("[Batch: %s] - Submitted %d letters in %s.\r\n", fr.BatchID, len(fr.LetterIDs), fr.Duration)
	default:
		return fmt.Sprintf("[Batch: %s] - Submission of %d letters failed.\r\nError: %s\r\n", fr.BatchID, len(fr.LetterIDs), fr.ErrorText)
	}
}

func newFlushReceipt(mode FlushMode, letters []*Letter) *FlushReceipt {

	receipt := &FlushReceipt{
		Mode:      mode.String(),
		LetterIDs: make([]string, 0, len(letters)),
		Empty:     len(letters) == 0,
	}

	for _, letter := range letters {
		receipt.LetterIDs = append(receipt.LetterIDs, letter.UniqueDocID)
	}

	return receipt
}

func (fr *FlushReceipt) fail(err error, letters []*Letter, requeued bool) {
	fr.Success = false
	fr.Error = err
	fr.ErrorText = err.Error()
	fr.Requeued = requeued
	if !requeued {
		fr.FailedLetters = letters
	}
}
