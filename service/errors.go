package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/berthwatch/backend/pkg/pdftable"
)

var (
	// ErrFetch is returned when the remote schedule cannot be downloaded
	ErrFetch = errors.New("failed to fetch schedule")
	// ErrParse is returned when a document cannot be read as a table-bearing PDF
	ErrParse = pdftable.ErrParse
	// ErrNotFound is returned when no batch has been stored yet
	ErrNotFound = errors.New("no batch found")
	// ErrPersistence is returned when the store fails
	ErrPersistence = errors.New("storage failure")
	// ErrEmptyBatch is returned when an extraction run produced no records
	ErrEmptyBatch = errors.New("no records to store")
)

// ValidationError describes rejected input fields
type ValidationError struct {
	Missing   []string
	Malformed []string
}

func (e *ValidationError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing required fields: "+strings.Join(e.Missing, ", "))
	}
	if len(e.Malformed) > 0 {
		parts = append(parts, fmt.Sprintf("invalid date format (expected YYYY-MM-DD): %s", strings.Join(e.Malformed, ", ")))
	}
	return strings.Join(parts, "; ")
}
