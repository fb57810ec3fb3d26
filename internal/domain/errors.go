package domain

import (
	"context"
	"errors"
	"fmt"
	"net"
)

var (
	ErrConfig       = errors.New("configuration error")
	ErrSourceFetch  = errors.New("source fetch failed")
	ErrSourceParse  = errors.New("source parse failed")
	ErrEmptySource  = errors.New("source has no entries")
	ErrNotFound     = errors.New("document not found")
	ErrConflict     = errors.New("document version conflict")
	ErrRedirectLoop = errors.New("too many redirects")
	ErrDownload     = errors.New("download failed")
	ErrUpload       = errors.New("upload failed")
	ErrPublish      = errors.New("publish failed")
	ErrTimeout      = errors.New("operation timed out")
)

// ChannelError carries the description string returned by the messaging channel.
type ChannelError struct {
	Op          string
	Description string
	Kind        error
}

func (e *ChannelError) Error() string {
	if e.Description == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %s", e.Op, e.Kind, e.Description)
}

func (e *ChannelError) Unwrap() error {
	return e.Kind
}

// Timeout rewrites deadline and network timeout failures as ErrTimeout while
// keeping the cause in the chain. Other errors pass through unchanged.
func Timeout(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrTimeout) {
		return err
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("%s: %w: %w", op, ErrTimeout, err)
	}
	return err
}
