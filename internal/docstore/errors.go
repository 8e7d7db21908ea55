package docstore

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies document store failures.
type Kind int

const (
	// KindNetwork covers transport failures and unexpected responses.
	KindNetwork Kind = iota
	// KindConflict means the document changed since it was read.
	KindConflict
	// KindNotFound means the repository, branch or file does not exist.
	KindNotFound
	// KindUnauthorized means the store rejected the credential.
	KindUnauthorized
)

var (
	ErrNetwork      = errors.New("document store unreachable")
	ErrConflict     = errors.New("document changed since it was read")
	ErrNotFound     = errors.New("document not found")
	ErrUnauthorized = errors.New("document store rejected credentials")
)

// Error is returned by every Client operation except for context errors.
type Error struct {
	Kind       Kind
	Op         string
	StatusCode int
	// Message is the store's own explanation, when it sent one.
	Message string
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("docstore ")
	b.WriteString(e.Op)
	b.WriteString(": ")
	b.WriteString(e.sentinel().Error())
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (http %d)", e.StatusCode)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel for the error kind.
func (e *Error) Is(target error) bool {
	return target == e.sentinel()
}

func (e *Error) sentinel() error {
	switch e.Kind {
	case KindConflict:
		return ErrConflict
	case KindNotFound:
		return ErrNotFound
	case KindUnauthorized:
		return ErrUnauthorized
	default:
		return ErrNetwork
	}
}
