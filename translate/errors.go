package translate

import (
	"errors"
	"fmt"
)

var ErrUnsupportedLanguage = errors.New("unsupported language")

// TranslationError wraps any failure of a translation backend.
type TranslationError struct {
	Backend string
	Err     error
}

func (e *TranslationError) Error() string {
	return fmt.Sprintf("%s translation failed: %v", e.Backend, e.Err)
}

func (e *TranslationError) Unwrap() error { return e.Err }
