package workflow

import "errors"

var (
	// ErrBusy is returned when a scan is started while another is processing
	ErrBusy = errors.New("a scan is already in progress")

	// ErrWrongPhase is returned for an operation the current phase does not allow
	ErrWrongPhase = errors.New("operation not allowed in the current phase")

	// ErrExtractionFailed wraps any extraction failure, including timeouts
	ErrExtractionFailed = errors.New("extraction failed")

	// ErrCaptureUnavailable is returned when the capture device cannot be used.
	// Manual file selection still works.
	ErrCaptureUnavailable = errors.New("capture device unavailable")
)

// Messages shown to the user alongside the phase
const (
	msgExtractionFailed  = "Failed to extract data. Please ensure the image is clear and try again."
	msgCaptureFailed     = "Camera is unavailable. Please choose a file instead."
	msgPersistFailed     = "Could not save the document. Please try again."
	msgExtractionTimeout = "Extraction took too long. Please try again."
)
