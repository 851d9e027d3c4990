package errors

import (
	"bufio"
	stderrors "errors"
	"fmt"
	"os"
	"strings"
)

// Category represents the area of the tool an error belongs to.
type Category string

const (
	CategoryBuild  Category = "build"
	CategoryModule Category = "module"
	CategoryConfig Category = "config"
	CategoryCLI    Category = "cli"
)

// Kind is the machine-checkable classification of an error.
type Kind string

const (
	KindNone        Kind = ""
	KindLoad        Kind = "load"
	KindValidation  Kind = "validation"
	KindEnumeration Kind = "enumeration"
	KindFilesystem  Kind = "filesystem"
	KindConflict    Kind = "conflict"
	KindPattern     Kind = "pattern"
	KindConfig      Kind = "config"
)

// Location represents a source code location.
type Location struct {
	File   string
	Line   int
	Column int
}

// String returns the location as a formatted string.
func (l *Location) String() string {
	if l == nil {
		return ""
	}
	if l.Column > 0 {
		return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Column)
	}
	return fmt.Sprintf("%s:%d", l.File, l.Line)
}

// Error is a structured error with a code, the offending module and a hint.
type Error struct {
	// Code is a unique error identifier (e.g., "E201").
	Code string

	// Category is the error area (build, module, config, cli).
	Category Category

	// Kind classifies the error for callers.
	Kind Kind

	// Message is a short description of the error.
	Message string

	// Detail is the one-line cause.
	Detail string

	// File is the module or path the error is about, relative to the project.
	File string

	// Locator points at the first offending value ("$.items[2].when").
	Locator string

	// Param is the route parameter an enumeration error is about.
	Param string

	// Location is the source location, when the error comes from a transpiler.
	Location *Location

	// Context contains surrounding source code lines.
	Context []string

	// Suggestion is a hint on how to fix the error.
	Suggestion string

	// DocURL is a link to documentation about this error.
	DocURL string

	// Wrapped is the underlying error, if any.
	Wrapped error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	if e.Code != "" {
		b.WriteString(e.Code)
		b.WriteString(": ")
	}
	if e.File != "" {
		b.WriteString("[module:")
		b.WriteString(e.File)
		b.WriteString("] ")
	}
	b.WriteString(e.Message)
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	return b.String()
}

// Unwrap returns the wrapped error for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Wrapped
}

// WithFile records the module path the error is about.
func (e *Error) WithFile(file string) *Error {
	e.File = file
	return e
}

// WithLocator records the locator of the offending value.
func (e *Error) WithLocator(locator string) *Error {
	e.Locator = locator
	return e
}

// WithParam records the route parameter an enumeration error is about.
func (e *Error) WithParam(name string) *Error {
	e.Param = name
	return e
}

// WithLocation adds source location to the error.
func (e *Error) WithLocation(file string, line, column int) *Error {
	e.Location = &Location{File: file, Line: line, Column: column}
	e.Context = readContextLines(file, line, 5)
	return e
}

// WithSuggestion adds a fix suggestion to the error.
func (e *Error) WithSuggestion(s string) *Error {
	e.Suggestion = s
	return e
}

// WithDetail sets the one-line cause.
func (e *Error) WithDetail(d string) *Error {
	e.Detail = d
	return e
}

// WithDetailf sets a formatted one-line cause.
func (e *Error) WithDetailf(format string, args ...any) *Error {
	e.Detail = fmt.Sprintf(format, args...)
	return e
}

// Wrap wraps another error. The detail defaults to its message.
func (e *Error) Wrap(err error) *Error {
	e.Wrapped = err
	if e.Detail == "" && err != nil {
		e.Detail = err.Error()
	}
	return e
}

// readContextLines reads lines around the specified line number from a file.
func readContextLines(filename string, targetLine, contextSize int) []string {
	file, err := os.Open(filename)
	if err != nil {
		return nil
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	lineNum := 0
	startLine := targetLine - contextSize/2
	endLine := targetLine + contextSize/2

	for scanner.Scan() {
		lineNum++
		if lineNum >= startLine && lineNum <= endLine {
			lines = append(lines, scanner.Text())
		}
		if lineNum > endLine {
			break
		}
	}

	return lines
}

// New creates an Error from a registered error code.
func New(code string) *Error {
	template, ok := registry[code]
	if !ok {
		return &Error{
			Code:    code,
			Message: "Unknown error",
		}
	}
	return &Error{
		Code:     code,
		Category: template.Category,
		Kind:     template.Kind,
		Message:  template.Message,
		DocURL:   template.DocURL,
	}
}

// Newf creates an uncoded Error with a formatted message.
func Newf(category Category, format string, args ...any) *Error {
	return &Error{
		Category: category,
		Message:  fmt.Sprintf(format, args...),
	}
}

// FromError wraps a standard error in an Error with the given code.
// Errors that already carry a code are returned as-is.
func FromError(err error, code string) *Error {
	if err == nil {
		return nil
	}
	var se *Error
	if stderrors.As(err, &se) {
		return se
	}
	return New(code).Wrap(err)
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var se *Error
	if stderrors.As(err, &se) {
		return se.Kind
	}
	return KindNone
}

// As is errors.As from the standard library.
func As(err error, target any) bool {
	return stderrors.As(err, target)
}

// Is is errors.Is from the standard library.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}
