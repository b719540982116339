package models

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/changes_backend/utils"
	"github.com/google/uuid"
)

// ErrUnparseableTimestamp is returned when a remote timestamp matches none of
// the accepted layouts.
var ErrUnparseableTimestamp = errors.New("unparseable timestamp")

// The central system emits either epoch milliseconds or ISO-8601 strings
// depending on the endpoint version.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// NormalizeTimestamp converts a remote timestamp into UTC.
// Accepts epoch milliseconds (and plain epoch seconds) as digit strings,
// plus the ISO-8601 layouts above.
func NormalizeTimestamp(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, ErrUnparseableTimestamp
	}

	if epoch, err := strconv.ParseInt(raw, 10, 64); err == nil {
		// Values above 1e12 are milliseconds; below that, seconds.
		if epoch > 1_000_000_000_000 {
			return time.UnixMilli(epoch).UTC(), nil
		}
		return time.Unix(epoch, 0).UTC(), nil
	}

	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, ErrUnparseableTimestamp
}

// NormalizeTimestampOr returns the fallback when the raw value cannot be
// parsed. Used where a sync pass must not abort on a single bad field.
func NormalizeTimestampOr(raw string, fallback time.Time) time.Time {
	if t, err := NormalizeTimestamp(raw); err == nil {
		return t
	}
	return fallback
}

func correlationIdFromContextOrNew(ctx context.Context) string {
	if ctx != nil {
		if v, ok := utils.GetCorrelationIdFromContext(ctx); ok && v != "" {
			return v
		}
	}
	return uuid.NewString()
}
