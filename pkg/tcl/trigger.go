package tcl

import (
	"fmt"
	"time"
)

// SendOn values accepted in ModeConfig.
const (
	SendOnLetterCreated  = "letter_created"
	SendOnFileCountLimit = "filecount_limit"
	SendOnFileSizeLimit  = "filesize_limit"
	SendOnInterval       = "interval"
)

// FlushMode decides, after every enqueue, whether the queue must be flushed now.
// The set of modes is closed: OnCreate, OnCount, OnSize and OnInterval.
type FlushMode interface {
	ShouldFlush(snapshot QueueSnapshot) bool
	String() string
	isFlushMode()
}

// OnCreate flushes every letter as its own batch.
type OnCreate struct{}

// OnCount flushes once the queue holds at least N letters.
type OnCount struct {
	N int
}

// OnSize flushes once the queued documents add up to more than Bytes.
type OnSize struct {
	Bytes int64
}

// OnInterval never flushes on enqueue; a Scheduler flushes every Every instead.
// Results have no caller to return to, so they go to OnReceipt and OnError.
type OnInterval struct {
	Every     time.Duration
	OnReceipt func(*FlushReceipt)
	OnError   func(error)
}

func (OnCreate) ShouldFlush(QueueSnapshot) bool { return true }
func (OnCreate) String() string                 { return SendOnLetterCreated }
func (OnCreate) isFlushMode()                   {}

func (m OnCount) ShouldFlush(s QueueSnapshot) bool { return s.Count >= m.N }
func (m OnCount) String() string                   { return fmt.Sprintf("%s(%d)", SendOnFileCountLimit, m.N) }
func (OnCount) isFlushMode()                       {}

func (m OnSize) ShouldFlush(s QueueSnapshot) bool { return s.CumulativeSize > m.Bytes }
func (m OnSize) String() string                   { return fmt.Sprintf("%s(%d)", SendOnFileSizeLimit, m.Bytes) }
func (OnSize) isFlushMode()                       {}

func (OnInterval) ShouldFlush(QueueSnapshot) bool { return false }
func (m OnInterval) String() string              { return fmt.Sprintf("%s(%s)", SendOnInterval, m.Every) }
func (OnInterval) isFlushMode()                   {}

// NewFlushMode converts a ModeConfig into a FlushMode. A nil config means OnCreate.
// The callbacks are required, and only used, for the interval mode.
func NewFlushMode(config *ModeConfig, processReceipt func(*FlushReceipt), processError func(error)) (FlushMode, error) {

	if config == nil {
		return OnCreate{}, nil
	}

	if config.SendOn != "" && config.SendOn != SendOnLetterCreated && config.Value <= 0 {
		return nil, fmt.Errorf("%w: %s requires a positive value", ErrInvalidFlushMode, config.SendOn)
	}

	switch config.SendOn {
	case "", SendOnLetterCreated:
		return OnCreate{}, nil
	case SendOnFileCountLimit:
		return OnCount{N: int(config.Value)}, nil
	case SendOnFileSizeLimit:
		return OnSize{Bytes: config.Value}, nil
	case SendOnInterval:
		if processReceipt == nil || processError == nil {
			return nil, ErrCallbacksRequired
		}
		return OnInterval{
			Every:     time.Duration(config.Value) * time.Second,
			OnReceipt: processReceipt,
			OnError:   processError,
		}, nil
	default:
		return nil, fmt.Errorf("%w: unknown SendOn %q", ErrInvalidFlushMode, config.SendOn)
	}
}
