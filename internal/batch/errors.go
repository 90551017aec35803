package batch

import "errors"

var (
	ErrInvalidJobParams        = errors.New("invalid job parameters")
	ErrContentTypeNotLocalized = errors.New("content type is not localized")
	ErrJobAlreadyExists        = errors.New("a job for this content type and locales is already active")
	ErrJobNotFound             = errors.New("job does not exist")
	ErrJobNotRunning           = errors.New("job is not running")
	ErrJobAlreadyRunning       = errors.New("job is already running")
	ErrInvalidJobState         = errors.New("job status does not allow this operation")
	ErrInvalidTransition       = errors.New("invalid job status transition")
)

// errStopping is returned internally when a pause or cancel won a race.
var errStopping = errors.New("job is stopping")
