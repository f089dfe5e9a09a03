package service

import (
	"errors"
	"io"
	"log"
	"time"

	"github.com/jask/subwatch/internal/database"
)

// Error kinds returned by services. Callers map them with errors.Is.
var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
	ErrInvalid  = errors.New("invalid input")
)

func clock(now func() time.Time) time.Time {
	if now != nil {
		return now()
	}
	return database.Now()
}

var discard = log.New(io.Discard, "", 0)

func logger(l *log.Logger) *log.Logger {
	if l == nil {
		return discard
	}
	return l
}
