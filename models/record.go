package models

import "errors"

// OutputRecord is the item handed back to the dispatcher's output pipeline,
// one per dispatched URL.
type OutputRecord struct {
	URL      string `json:"url,omitempty"`
	Markdown string `json:"markdown"`

	// Error is populated only when the render failed. Markdown is empty then.
	Error *ErrorDetail `json:"error,omitempty"`
}

// Failed reports whether the record marks a failed URL.
func (r *OutputRecord) Failed() bool {
	return r.Error != nil
}

// NewFailedRecord builds the error-marked record for a URL whose render failed.
func NewFailedRecord(url string, err error) *OutputRecord {
	detail := &ErrorDetail{Code: ErrCodeInternal, Message: err.Error()}
	var se *ScrapeError
	if errors.As(err, &se) {
		detail = se.ToDetail()
	}
	return &OutputRecord{URL: url, Error: detail}
}
