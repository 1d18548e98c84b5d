package resource

import (
	"errors"
	"fmt"
)

var (
	// ErrResourceInit matches every InitError.
	ErrResourceInit        = errors.New("resource initialization failed")
	ErrUnsupportedLanguage = errors.New("unsupported language")
)

// InitError reports that the analyzer chain of a language could not be
// built. For a supported language it is sticky for the process lifetime.
type InitError struct {
	Lang string
	Err  error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("initialize %s analyzers: %v", e.Lang, e.Err)
}

func (e *InitError) Unwrap() error { return e.Err }

func (e *InitError) Is(target error) bool { return target == ErrResourceInit }
