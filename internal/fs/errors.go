package fs

import (
	"errors"
	"os"
	"syscall"
)

// defines helpers for detecting transient filesystem errors.
// These determine whether an operation should retry or fail immediately.

var (
	// ErrTransient marks a condition that was retried until attempts ran out.
	ErrTransient = errors.New("transient i/o error")
	// ErrPermanent marks a condition that retrying cannot fix.
	ErrPermanent = errors.New("permanent i/o error")
	// ErrSourceChanged is returned when a file changed while it was being read.
	ErrSourceChanged = errors.New("source changed during read")
)

func IsTransient(err error) bool {
	if errors.Is(err, syscall.EAGAIN) ||
		errors.Is(err, syscall.EBUSY) ||
		errors.Is(err, syscall.ETIMEDOUT) ||
		errors.Is(err, ErrSourceChanged) {
		return true
	}

	return isPlatformTransient(err)
}

// IsTransientRead widens IsTransient for reads of a save that the game may be
// rewriting: the file can briefly vanish or be locked.
func IsTransientRead(err error) bool {
	if IsTransient(err) {
		return true
	}
	return errors.Is(err, os.ErrNotExist) || errors.Is(err, os.ErrPermission)
}
