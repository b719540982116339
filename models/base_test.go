package models

import (
	"errors"
	"testing"
	"time"
)

func TestNormalizeTimestamp_EpochMillis(t *testing.T) {
	got, err := NormalizeTimestamp("1717243200000")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestNormalizeTimestamp_EpochSeconds(t *testing.T) {
	got, err := NormalizeTimestamp("1717243200")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestNormalizeTimestamp_ISO8601(t *testing.T) {
	cases := []struct {
		raw  string
		want time.Time
	}{
		{"2024-06-01T12:00:00Z", time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)},
		{"2024-06-01T12:00:00+06:30", time.Date(2024, 6, 1, 5, 30, 0, 0, time.UTC)},
		{"2024-06-01T12:00:00", time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)},
		{"2024-06-01 12:00:00", time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)},
		{"2024-06-01", time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, tc := range cases {
		got, err := NormalizeTimestamp(tc.raw)
		if err != nil {
			t.Errorf("%q: unexpected error: %v", tc.raw, err)
			continue
		}
		if !got.Equal(tc.want) {
			t.Errorf("%q: got %v, want %v", tc.raw, got, tc.want)
		}
		if got.Location() != time.UTC {
			t.Errorf("%q: result not in UTC", tc.raw)
		}
	}
}

func TestNormalizeTimestamp_Invalid(t *testing.T) {
	for _, raw := range []string{"", "  ", "not-a-time", "2024/06/01"} {
		if _, err := NormalizeTimestamp(raw); !errors.Is(err, ErrUnparseableTimestamp) {
			t.Errorf("%q: expected ErrUnparseableTimestamp, got %v", raw, err)
		}
	}
}

func TestNormalizeTimestampOr_Fallback(t *testing.T) {
	fallback := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	if got := NormalizeTimestampOr("garbage", fallback); !got.Equal(fallback) {
		t.Errorf("got %v, want fallback %v", got, fallback)
	}
	if got := NormalizeTimestampOr("2024-06-01T12:00:00Z", fallback); got.Equal(fallback) {
		t.Error("valid timestamp should not fall back")
	}
}

func TestChangeStatusFromRemote(t *testing.T) {
	cases := []struct {
		remote string
		want   ChangeStatus
	}{
		{"SUBMITTED", ChangeStatusSubmitted},
		{"IN_REVIEW", ChangeStatusInReview},
		{"INREVIEW", ChangeStatusInReview},
		{"APPROVED", ChangeStatusApproved},
		{"SCHEDULED", ChangeStatusScheduled},
		{"IN_PROGRESS", ChangeStatusImplementing},
		{"IMPLEMENTING", ChangeStatusImplementing},
		{"COMPLETED", ChangeStatusCompleted},
		{"FAILED", ChangeStatusFailed},
		{"CLOSED", ChangeStatusClosed},
		{" closed ", ChangeStatusClosed},
	}
	for _, tc := range cases {
		if got := ChangeStatusFromRemote(tc.remote); got != tc.want {
			t.Errorf("%q: got %q, want %q", tc.remote, got, tc.want)
		}
	}
}

func TestChangeStatusFromRemote_UnknownPassesThrough(t *testing.T) {
	if got := ChangeStatusFromRemote(" OnHold "); got != ChangeStatus("OnHold") {
		t.Errorf("got %q, want OnHold", got)
	}
}

func TestParseChangeStatus(t *testing.T) {
	if _, err := ParseChangeStatus("Approved"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if _, err := ParseChangeStatus("APPROVED"); err == nil {
		t.Error("remote casing should not parse as a local status")
	}
}

func TestReplayStatus(t *testing.T) {
	entries := []*ApprovalHistoryEntry{
		{FromStatus: "", ToStatus: ChangeStatusSubmitted},
		{FromStatus: ChangeStatusSubmitted, ToStatus: ChangeStatusInReview},
		{FromStatus: ChangeStatusInReview, ToStatus: ChangeStatusApproved},
	}
	got, ok := ReplayStatus(entries)
	if !ok || got != ChangeStatusApproved {
		t.Errorf("got %q ok=%v, want Approved", got, ok)
	}

	if _, ok := ReplayStatus(nil); ok {
		t.Error("empty ledger should report no status")
	}
}
