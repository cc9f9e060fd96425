package task

import "errors"

var (
	ErrNoClips            = errors.New("at least one clip is required")
	ErrTooManyClips       = errors.New("too many clips")
	ErrInvalidOption      = errors.New("invalid compilation option")
	ErrEngineUnavailable  = errors.New("transcoding engine unavailable")
	ErrJobExists          = errors.New("job id already registered")
	ErrJobNotFound        = errors.New("job not found")
	ErrInvalidTransition  = errors.New("invalid status transition")
	ErrAllDownloadsFailed = errors.New("no clip could be downloaded")
	ErrInterrupted        = errors.New("compilation interrupted")
)

// IsValidation reports whether err rejects a submission before any job exists
// because of the request itself.
func IsValidation(err error) bool {
	return errors.Is(err, ErrNoClips) || errors.Is(err, ErrTooManyClips) || errors.Is(err, ErrInvalidOption)
}
