package errors

import (
	"errors"
	"fmt"
	"io/fs"
)

var (
	// Step failure kinds
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrNetwork       = errors.New("network error")
	ErrVerification  = errors.New("verification failed")
	ErrProcess       = errors.New("process failed")
	ErrIO            = errors.New("i/o error")

	// ErrTimeout is a process error raised when a command is force-terminated
	ErrTimeout = fmt.Errorf("%w: timed out", ErrProcess)

	// Configuration Errors
	ErrUnknownStepType  = fmt.Errorf("%w: unknown step type", ErrConfiguration)
	ErrMissingParameter = fmt.Errorf("%w: missing required parameter", ErrConfiguration)
	ErrInvalidParameter = fmt.Errorf("%w: invalid parameter", ErrConfiguration)
	ErrInvalidChecksum  = fmt.Errorf("%w: malformed checksum", ErrConfiguration)
	ErrInvalidManifest  = fmt.Errorf("%w: invalid manifest", ErrConfiguration)

	// Archive Errors
	ErrInvalidArchive     = errors.New("archive file is corrupted or unsupported")
	ErrUnsupportedArchive = errors.New("unsupported archive format")
	ErrUnsafeArchivePath  = errors.New("archive entry escapes destination")

	// Download Errors
	ErrHTTPStatusFailed = fmt.Errorf("%w: unexpected HTTP status code", ErrNetwork)
	ErrChecksumMismatch = fmt.Errorf("%w: checksum mismatch", ErrVerification)
)

// ErrorKind names the class of a step failure.
type ErrorKind string

const (
	KindConfiguration ErrorKind = "ConfigurationError"
	KindNotFound      ErrorKind = "NotFoundError"
	KindNetwork       ErrorKind = "NetworkError"
	KindVerification  ErrorKind = "VerificationError"
	KindProcess       ErrorKind = "ProcessError"
	KindIO            ErrorKind = "IOError"
)

var kindSentinels = map[ErrorKind]error{
	KindConfiguration: ErrConfiguration,
	KindNotFound:      ErrNotFound,
	KindNetwork:       ErrNetwork,
	KindVerification:  ErrVerification,
	KindProcess:       ErrProcess,
	KindIO:            ErrIO,
}

// StepError is the structured failure carried by a step result.
type StepError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

// NewStepError builds a StepError, classifying err when kind is empty.
func NewStepError(kind ErrorKind, err error) *StepError {
	if kind == "" {
		kind = KindOf(err)
	}
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return &StepError{Kind: kind, Message: msg, Err: err}
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match a StepError against its kind sentinel.
func (e *StepError) Is(target error) bool {
	sentinel, ok := kindSentinels[e.Kind]
	return ok && sentinel == target
}

// KindOf classifies an arbitrary error into the step failure taxonomy.
func KindOf(err error) ErrorKind {
	var stepErr *StepError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &stepErr):
		return stepErr.Kind
	case errors.Is(err, ErrConfiguration):
		return KindConfiguration
	case errors.Is(err, ErrNotFound), errors.Is(err, fs.ErrNotExist):
		return KindNotFound
	case errors.Is(err, ErrNetwork):
		return KindNetwork
	case errors.Is(err, ErrVerification):
		return KindVerification
	case errors.Is(err, ErrProcess):
		return KindProcess
	default:
		return KindIO
	}
}

// Is reports whether any error in err's tree matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's tree that matches target.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// New returns an error that formats as the given text.
func New(text string) error {
	return errors.New(text)
}
