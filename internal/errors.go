package internal

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyInput is returned when a submission has no text after trimming
	ErrEmptyInput = errors.New("input is empty")
	// ErrUnknownSession is returned when a submission targets a missing session
	ErrUnknownSession = errors.New("unknown session")
	// ErrExchangeInFlight is returned when a session already has an exchange running
	ErrExchangeInFlight = errors.New("an exchange is already in progress for this session")
	// ErrEmptyReply is reported when a gateway reply carries no text
	ErrEmptyReply = errors.New("empty reply")
)

// StorageError represents errors accessing the key-value store
type StorageError struct {
	Path string
	Op   string // "open", "get", "set", "delete"
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// ParseError represents errors parsing stored data
type ParseError struct {
	Source string // "sessions", "history"
	Key    string // storage key or file path
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error [%s] %s: %v", e.Source, e.Key, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// GatewayError represents transport failures talking to the chat gateway
type GatewayError struct {
	Endpoint string
	Err      error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway error [%s]: %v", e.Endpoint, e.Err)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// ExportError represents errors during export
type ExportError struct {
	Format string
	Path   string
	Err    error
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("export error [%s] %s: %v", e.Format, e.Path, e.Err)
}

func (e *ExportError) Unwrap() error {
	return e.Err
}

// UpstreamError represents a non-success reply from the chat gateway
type UpstreamError struct {
	Status int
	Detail string
}

func (e *UpstreamError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("upstream error (status %d): %s", e.Status, e.Detail)
	}
	return fmt.Sprintf("upstream error: %s", e.Detail)
}
