package apperr

import (
	"errors"
	"fmt"
)

// Error kinds. Match them with errors.Is.
var (
	ErrConfig          = errors.New("configuration error")
	ErrNotFound        = errors.New("not found")
	ErrCorruptDocument = errors.New("corrupt document")
	ErrParse           = errors.New("parse error")
	ErrEmptyRange      = errors.New("empty page range")
	ErrIO              = errors.New("i/o error")
)

// Error is a failure of one operation, classified by Kind.
type Error struct {
	Kind error
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Kind.Error()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Path != "" {
		msg += " (" + e.Path + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func newError(kind error, op, path string, err error) *Error {
	return &Error{Kind: kind, Op: op, Path: path, Err: err}
}

// Config reports an invalid setting, such as an unknown target profile.
func Config(format string, args ...any) error {
	return newError(ErrConfig, "", "", fmt.Errorf(format, args...))
}

// NotFound reports a missing input file.
func NotFound(op, path string, err error) error {
	return newError(ErrNotFound, op, path, err)
}

// CorruptDocument reports a source document that cannot be read as a PDF.
func CorruptDocument(path string, err error) error {
	return newError(ErrCorruptDocument, "open document", path, err)
}

// Parse reports an unusable boundary table.
func Parse(path string, format string, args ...any) error {
	return newError(ErrParse, "load boundary table", path, fmt.Errorf(format, args...))
}

// EmptyRange reports a page range with no pages in it.
func EmptyRange(start, end int) error {
	return newError(ErrEmptyRange, "chunk", "", fmt.Errorf("start %d, end %d", start, end))
}

// IO reports a failed read or write of path.
func IO(op, path string, err error) error {
	return newError(ErrIO, op, path, err)
}

// Kind returns the classification of err, or nil when err is not classified.
func Kind(err error) error {
	for _, k := range []error{ErrConfig, ErrNotFound, ErrCorruptDocument, ErrParse, ErrEmptyRange, ErrIO} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}
