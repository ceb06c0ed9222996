package framework

import (
	"fmt"
	"strings"
)

// ValidationError captures a single field-specific configuration issue.
type ValidationError struct {
	File    string
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	var parts []string
	if e.File != "" {
		parts = append(parts, e.File)
	}
	if e.Field != "" {
		parts = append(parts, e.Field)
	}
	parts = append(parts, e.Message)
	return strings.Join(parts, ": ")
}

// ValidationErrors aggregates every problem found while loading configuration.
type ValidationErrors []ValidationError

func (errs ValidationErrors) Error() string {
	parts := make([]string, 0, len(errs))
	for _, e := range errs {
		parts = append(parts, e.Error())
	}
	return strings.Join(parts, "\n")
}

func (errs *ValidationErrors) add(file, field, format string, args ...any) {
	*errs = append(*errs, ValidationError{
		File:    file,
		Field:   field,
		Message: fmt.Sprintf(format, args...),
	})
}

// withFile stamps a source file onto errors produced by in-memory constructors.
func (errs ValidationErrors) withFile(file string) ValidationErrors {
	out := make(ValidationErrors, len(errs))
	for i, e := range errs {
		if e.File == "" {
			e.File = file
		}
		out[i] = e
	}
	return out
}
