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

package database

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/l3montree-dev/trustgraph/monitoring"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

const (
	pgDeadlockDetected     = "40P01"
	pgSerializationFailure = "40001"
)

// IsRetryable reports deadlocks, serialization failures and a busy sqlite
// database. Retrying the whole transaction is safe for these.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgDeadlockDetected || pgErr.Code == pgSerializationFailure
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

// IsParameterLimitError reports statements with too many bind parameters.
func IsParameterLimitError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "extended protocol limited to 65535 parameters") ||
		strings.Contains(msg, "too many SQL variables")
}

// Transaction runs fn in one transaction and retries it from scratch up to
// retries times when the store reports a retryable conflict.
func Transaction(ctx context.Context, db *gorm.DB, retries int, fn func(tx *gorm.DB) error) error {
	backoff := 50 * time.Millisecond
	for attempt := 0; ; attempt++ {
		err := db.WithContext(ctx).Transaction(fn)
		if err == nil {
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if !IsRetryable(err) || attempt >= retries {
			return err
		}

		monitoring.TransactionRetries.Inc()
		slog.Warn("retrying transaction", "attempt", attempt+1, "err", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
}
