// Copyright (C) 2026 l3montree GmbH
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package shared

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
)

type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindParse
	KindValidation
	KindStorage
	KindPersistence
	KindCanceled
)

var errorKindNames = map[ErrorKind]string{
	KindUnknown:     "unknown",
	KindParse:       "parse",
	KindValidation:  "validation",
	KindStorage:     "storage",
	KindPersistence: "persistence",
	KindCanceled:    "canceled",
}

func (k ErrorKind) String() string {
	return errorKindNames[k]
}

// ErrCanceled signals cooperative cancellation. It is never wrapped into
// another kind.
var ErrCanceled = errors.New("canceled")

// Error carries the kind of a failure through every layer.
type Error struct {
	Kind ErrorKind
	// Retryable is only meaningful for storage errors.
	Retryable bool
	Err       error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s error: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func classify(kind ErrorKind, retryable bool, err error) error {
	if err == nil {
		return nil
	}
	if KindOf(err) == KindCanceled {
		return err
	}
	var existing *Error
	if errors.As(err, &existing) {
		return err
	}
	return &Error{Kind: kind, Retryable: retryable, Err: err}
}

func ParseError(err error) error {
	return classify(KindParse, false, err)
}

func ParseErrorf(format string, args ...any) error {
	return ParseError(errors.Errorf(format, args...))
}

func ValidationError(err error) error {
	return classify(KindValidation, false, err)
}

func ValidationErrorf(format string, args ...any) error {
	return ValidationError(errors.Errorf(format, args...))
}

func StorageError(err error, retryable bool) error {
	return classify(KindStorage, retryable, err)
}

func PersistenceError(err error) error {
	return classify(KindPersistence, false, err)
}

// KindOf classifies err. Context cancellation and deadlines are Canceled.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindUnknown
	}
	if errors.Is(err, ErrCanceled) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return KindCanceled
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

func IsCanceled(err error) bool {
	return KindOf(err) == KindCanceled
}

// IsSystemic reports errors that must stop a whole run instead of skipping
// one document.
func IsSystemic(err error) bool {
	switch KindOf(err) {
	case KindStorage, KindPersistence, KindUnknown:
		return err != nil
	}
	return false
}
