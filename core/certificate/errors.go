package certificate

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/trezcool/certstudio/core"
)

var (
	ErrElementNotFound   = errors.New("element not found")
	ErrNoSelection       = errors.New("no element selected")
	ErrGestureInProgress = errors.New("a gesture is already in progress")
	ErrNoGesture         = errors.New("no gesture in progress")
	ErrBusy              = errors.New("a save or export is already in progress")

	// repository errors
	ErrNotFound    = errors.New("design not found")
	ErrTitleExists = errors.New("a design with this title already exists")

	// export validation
	errEmptyDocument  = core.NewValidationError(errors.New("the design is empty"), core.FieldError{Field: "document", Error: "add at least one image or text"})
	errNoRenderTarget = core.NewValidationError(errors.New("no render target attached"), core.FieldError{Field: "viewport", Error: "width and height must be positive"})
	errEmptyTemplate  = core.NewValidationError(errors.New("the template is empty"), core.FieldError{Field: "template", Error: "this field is required"})
)

// IsValidation reports whether err is (or wraps) a core.ValidationError.
func IsValidation(err error) bool {
	var verr *core.ValidationError
	return errors.As(err, &verr)
}

// SanitizationError is returned when a template yields no safe markup.
type SanitizationError struct {
	Input string
}

func (e *SanitizationError) Error() string {
	return "the template produced no displayable content after sanitization"
}

// ExportError is a rasterization or encoding failure. The design is left untouched.
type ExportError struct {
	Op  string
	Err error
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("export: %s: %v", e.Op, e.Err)
}

func (e *ExportError) Unwrap() error { return e.Err }

func newExportError(op string, err error) error {
	return &ExportError{Op: op, Err: err}
}

// PersistenceKind classifies PersistenceError.
type PersistenceKind int

const (
	KindServer PersistenceKind = iota
	KindConflict
	KindNotFound
)

func (k PersistenceKind) String() string {
	switch k {
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not found"
	default:
		return "server"
	}
}

// PersistenceError is returned by a Gateway.
// Message is safe to display to the user.
type PersistenceError struct {
	Kind    PersistenceKind
	Message string
	Err     error
}

func (e *PersistenceError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func NewConflictError(msg string, err error) error {
	return &PersistenceError{Kind: KindConflict, Message: msg, Err: err}
}

func NewNotFoundError(msg string, err error) error {
	return &PersistenceError{Kind: KindNotFound, Message: msg, Err: err}
}

func NewServerError(msg string, err error) error {
	return &PersistenceError{Kind: KindServer, Message: msg, Err: err}
}

func isPersistenceKind(err error, kind PersistenceKind) bool {
	var perr *PersistenceError
	return errors.As(err, &perr) && perr.Kind == kind
}

func IsConflict(err error) bool { return isPersistenceKind(err, KindConflict) }
func IsNotFound(err error) bool { return isPersistenceKind(err, KindNotFound) }
