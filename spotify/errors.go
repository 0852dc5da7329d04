package spotify

import (
	"fmt"
	"strings"

	"github.com/relloyd/trackpipe/helper"
)

// UpstreamFetchError is a soft failure of a whole upstream call.
type UpstreamFetchError struct {
	Endpoint   string
	StatusCode int // zero when no response was received
	Body       string
	Err        error
}

func (e *UpstreamFetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%v returned status %v: %v", e.Endpoint, e.StatusCode, helper.Truncate(strings.TrimSpace(e.Body), 256))
	}
	return fmt.Sprintf("%v failed: %v", e.Endpoint, e.Err)
}

func (e *UpstreamFetchError) Unwrap() error { return e.Err }

// PerItemFetchError records one audio-features id that was skipped.
type PerItemFetchError struct {
	TrackID string `json:"track_id"`
	Err     error  `json:"-"`
}

func (e *PerItemFetchError) Error() string {
	return fmt.Sprintf("audio features for track %v: %v", e.TrackID, e.Err)
}

func (e *PerItemFetchError) Unwrap() error { return e.Err }
