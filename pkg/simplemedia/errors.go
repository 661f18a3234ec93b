package simplemedia

import (
	"errors"
	"fmt"

	"github.com/tendant/simple-media/pkg/simplemedia/objectkey"
	"github.com/tendant/simple-media/pkg/simplemedia/pathresolver"
	"github.com/tendant/simple-media/pkg/simplemedia/taxonomy"
	"github.com/tendant/simple-media/pkg/simplemedia/transcode"
	"github.com/tendant/simple-media/pkg/simplemedia/validate"
)

// Error types
var (
	// ErrInvalidFolder indicates a folder outside the taxonomy
	ErrInvalidFolder = taxonomy.ErrInvalidFolder

	// ErrInvalidPath indicates a reference that does not resolve inside the storage root
	ErrInvalidPath = pathresolver.ErrInvalidPath

	// ErrUnsupportedType indicates a type outside the allow-list
	ErrUnsupportedType = validate.ErrUnsupportedType

	// ErrPayloadTooLarge indicates a payload above the size ceiling
	ErrPayloadTooLarge = validate.ErrPayloadTooLarge

	// ErrMissingFile indicates a request without a file
	ErrMissingFile = validate.ErrMissingFile

	// ErrEmptyPayload indicates a zero-length file
	ErrEmptyPayload = validate.ErrEmptyPayload

	// ErrUndecodable indicates corrupt or unsupported image data
	ErrUndecodable = transcode.ErrUndecodable

	// ErrEntropy indicates the identifier source failed
	ErrEntropy = objectkey.ErrEntropy

	// ErrTooManyFiles indicates a batch above the configured limit
	ErrTooManyFiles = errors.New("too many files")

	// ErrMissingReference indicates a delete without a reference
	ErrMissingReference = errors.New("missing reference")

	// ErrUnauthorized indicates a missing or wrong API key
	ErrUnauthorized = errors.New("unauthorized")

	// ErrObjectNotFound is returned by a BlobStore deleting an absent key
	ErrObjectNotFound = errors.New("object not found")
)

// ValidationError represents a request rejected by policy
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// PathSecurityError represents a reference that tried to leave the storage root
type PathSecurityError struct {
	Reference string
	Err       error
}

func (e *PathSecurityError) Error() string {
	return fmt.Sprintf("rejected reference %q: %v", e.Reference, e.Err)
}

func (e *PathSecurityError) Unwrap() error {
	return e.Err
}

// TranscodeError represents a failure while re-encoding media
type TranscodeError struct {
	Mode string
	Err  error
}

func (e *TranscodeError) Error() string {
	return fmt.Sprintf("transcode (%s) failed: %v", e.Mode, e.Err)
}

func (e *TranscodeError) Unwrap() error {
	return e.Err
}

// StorageError represents an error related to storage operations
type StorageError struct {
	Backend string
	Key     string
	Op      string
	Err     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage operation %s failed for key %s on backend %s: %v", e.Op, e.Key, e.Backend, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// Kind classifies an error for callers that map errors to responses
type Kind string

const (
	KindValidation        Kind = "validation"
	KindAuth              Kind = "auth"
	KindPathSecurity      Kind = "path_security"
	KindTranscodeContent  Kind = "transcode_content"
	KindTranscodeInternal Kind = "transcode_internal"
	KindIO                Kind = "io"
)

// IsClientFault reports whether the kind describes a bad request rather
// than an environment failure.
func (k Kind) IsClientFault() bool {
	switch k {
	case KindValidation, KindAuth, KindPathSecurity, KindTranscodeContent:
		return true
	}
	return false
}

var validationSentinels = []error{
	ErrInvalidFolder,
	ErrUnsupportedType,
	ErrPayloadTooLarge,
	ErrMissingFile,
	ErrEmptyPayload,
	ErrTooManyFiles,
	ErrMissingReference,
}

// KindOf classifies err. Unknown errors are KindIO.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	if errors.Is(err, ErrUnauthorized) {
		return KindAuth
	}

	var pse *PathSecurityError
	if errors.As(err, &pse) || errors.Is(err, ErrInvalidPath) {
		return KindPathSecurity
	}

	var ve *ValidationError
	if errors.As(err, &ve) {
		return KindValidation
	}
	for _, sentinel := range validationSentinels {
		if errors.Is(err, sentinel) {
			return KindValidation
		}
	}

	if errors.Is(err, ErrUndecodable) {
		return KindTranscodeContent
	}
	var te *TranscodeError
	if errors.As(err, &te) {
		return KindTranscodeInternal
	}

	return KindIO
}
