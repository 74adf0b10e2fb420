package recording

import "errors"

var (
	// ErrInvalidArgument is the umbrella for malformed request values.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrForbidden indicates the filename is not owned by the caller.
	ErrForbidden = errors.New("forbidden")
	// ErrUnsupportedFormat signals an audio extension outside the allowed set.
	ErrUnsupportedFormat = errors.New("unsupported format")
	// ErrNotFound signals that the recording blob does not exist.
	ErrNotFound = errors.New("recording not found")
	// ErrUnauthorized is returned when no identity accompanies the call.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrTooLarge signals that the upload exceeds the configured limit.
	ErrTooLarge = errors.New("file too large")

	// ErrEmptyPayload is returned for zero-byte uploads.
	ErrEmptyPayload = &ArgumentError{Msg: "No file provided"}
	// ErrInvalidFilename rejects names with separators or traversal sequences.
	ErrInvalidFilename = &ArgumentError{Msg: "Invalid filename"}
)

// ArgumentError carries a user-facing message and matches ErrInvalidArgument.
type ArgumentError struct {
	Msg string
}

func (e *ArgumentError) Error() string { return e.Msg }

// Is makes every ArgumentError satisfy errors.Is(err, ErrInvalidArgument).
func (e *ArgumentError) Is(target error) bool {
	return target == ErrInvalidArgument
}
