package models

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures by their recovery boundary
type ErrorKind int

const (
	ExtractionFailure ErrorKind = iota + 1
	FilesystemFailure
	ConfigurationFailure
)

func (k ErrorKind) String() string {
	switch k {
	case ExtractionFailure:
		return "extraction"
	case FilesystemFailure:
		return "filesystem"
	case ConfigurationFailure:
		return "configuration"
	default:
		return "unknown"
	}
}

var (
	ErrExtraction    = errors.New("extraction failure")
	ErrFilesystem    = errors.New("filesystem failure")
	ErrConfiguration = errors.New("configuration failure")
)

// Sentinel returns the sentinel error matching the kind
func (k ErrorKind) Sentinel() error {
	switch k {
	case ExtractionFailure:
		return ErrExtraction
	case FilesystemFailure:
		return ErrFilesystem
	case ConfigurationFailure:
		return ErrConfiguration
	default:
		return nil
	}
}

// Failure is a recovered, per-file problem recorded in ProcessingStats
type Failure struct {
	Kind    ErrorKind
	Message string
}

// WrapError preserves the kind sentinel together with operation context.
func WrapError(kind ErrorKind, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind.Sentinel(), err)
}

// KindOf returns the kind carried by err, or 0 when none is present
func KindOf(err error) ErrorKind {
	for _, k := range []ErrorKind{ExtractionFailure, FilesystemFailure, ConfigurationFailure} {
		if errors.Is(err, k.Sentinel()) {
			return k
		}
	}
	return 0
}
