package etl

import (
	"errors"
	"fmt"
	"strings"
)

// Error categories. Every error produced by readers and the preprocessor
// matches exactly one of these with errors.Is.
var (
	ErrConfiguration     = errors.New("configuration error")
	ErrSourceUnavailable = errors.New("source unavailable")
	ErrParseFailure      = errors.New("parse failure")
	ErrSchemaMismatch    = errors.New("schema mismatch")
)

// SourceError carries the context needed to act on a failed read: which
// source, which file or location, and which configuration key controls it.
type SourceError struct {
	Category error  // one of the Err* sentinels
	Kind     string // source kind, e.g. "excel"
	Path     string // file path or database location
	Key      string // responsible configuration variable, if any
	Message  string
	Err      error
}

func (e *SourceError) Error() string {
	var b strings.Builder
	b.WriteString(e.Category.Error())
	if e.Kind != "" {
		fmt.Fprintf(&b, " [%s]", e.Kind)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Path != "" {
		fmt.Fprintf(&b, " (path %q", e.Path)
		if e.Key != "" {
			fmt.Fprintf(&b, ", set %s", e.Key)
		}
		b.WriteString(")")
	} else if e.Key != "" {
		fmt.Fprintf(&b, " (set %s)", e.Key)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *SourceError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Category}
	}
	return []error{e.Category, e.Err}
}

// Unavailable builds a SourceUnavailable error.
func Unavailable(kind, path, key string, err error) *SourceError {
	return &SourceError{Category: ErrSourceUnavailable, Kind: kind, Path: path, Key: key, Message: "cannot access source", Err: err}
}

// ParseFailed builds a ParseFailure error.
func ParseFailed(kind, path string, err error) *SourceError {
	return &SourceError{Category: ErrParseFailure, Kind: kind, Path: path, Message: "malformed content", Err: err}
}

// SchemaMismatch builds a SchemaMismatch error for an absent section, sheet or table.
func SchemaMismatch(kind, path, what string) *SourceError {
	return &SourceError{Category: ErrSchemaMismatch, Kind: kind, Path: path, Message: what}
}

// Misconfigured builds a Configuration error.
func Misconfigured(key, msg string, err error) *SourceError {
	return &SourceError{Category: ErrConfiguration, Key: key, Message: msg, Err: err}
}
