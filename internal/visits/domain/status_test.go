package domain

import (
	"strings"
	"testing"
	"time"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from Status
		to   Status
		want bool
	}{
		{StatusPending, StatusConfirmed, true},
		{StatusPending, StatusProposedReschedule, true},
		{StatusPending, StatusDeclined, true},
		{StatusPending, StatusCancelled, true},
		{StatusPending, StatusCompleted, false},
		{StatusProposedReschedule, StatusConfirmed, true},
		{StatusProposedReschedule, StatusProposedReschedule, true},
		{StatusProposedReschedule, StatusDeclined, true},
		{StatusProposedReschedule, StatusCancelled, true},
		{StatusProposedReschedule, StatusNoShowBuyer, false},
		{StatusConfirmed, StatusCompleted, true},
		{StatusConfirmed, StatusNoShowBuyer, true},
		{StatusConfirmed, StatusNoShowAgent, true},
		{StatusConfirmed, StatusCancelled, true},
		{StatusConfirmed, StatusDeclined, false},
		{StatusConfirmed, StatusProposedReschedule, false},
		{StatusDeclined, StatusConfirmed, false},
		{StatusCompleted, StatusCancelled, false},
		{StatusCancelled, StatusConfirmed, false},
		{StatusNoShowBuyer, StatusCompleted, false},
		{StatusNoShowAgent, StatusCancelled, false},
	}

	for _, tc := range tests {
		if got := CanTransition(tc.from, tc.to); got != tc.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestTerminalStatesHaveNoOutgoingEdges(t *testing.T) {
	for _, from := range AllStatuses {
		if !from.IsTerminal() {
			continue
		}
		for _, to := range AllStatuses {
			if CanTransition(from, to) {
				t.Errorf("terminal status %s has outgoing edge to %s", from, to)
			}
		}
	}
}

func TestIsActive(t *testing.T) {
	active := map[Status]bool{
		StatusPending:            true,
		StatusProposedReschedule: true,
		StatusConfirmed:          true,
	}
	for _, s := range AllStatuses {
		if got := s.IsActive(); got != active[s] {
			t.Errorf("%s.IsActive() = %v, want %v", s, got, active[s])
		}
	}
}

func TestInvalidTransitionMessage(t *testing.T) {
	msg := InvalidTransitionMessage(StatusDeclined, StatusCompleted)
	if !strings.Contains(msg, "declined") {
		t.Errorf("message %q does not name the current status", msg)
	}
	if !strings.Contains(msg, "confirmed") {
		t.Errorf("message %q does not name the allowed source statuses", msg)
	}
}

func TestIsCompletionOutcome(t *testing.T) {
	for _, s := range []Status{StatusCompleted, StatusNoShowBuyer, StatusNoShowAgent, StatusCancelled} {
		if !IsCompletionOutcome(s) {
			t.Errorf("IsCompletionOutcome(%s) = false, want true", s)
		}
	}
	for _, s := range []Status{StatusPending, StatusConfirmed, StatusProposedReschedule, StatusDeclined} {
		if IsCompletionOutcome(s) {
			t.Errorf("IsCompletionOutcome(%s) = true, want false", s)
		}
	}
}

func TestTimeWindowValidate(t *testing.T) {
	date := time.Date(2026, 9, 15, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		window  TimeWindow
		wantErr bool
	}{
		{"valid", TimeWindow{date, "10:00", "11:00"}, false},
		{"valid single digit hour", TimeWindow{date, "9:30", "10:15"}, false},
		{"valid late evening", TimeWindow{date, "22:00", "23:59"}, false},
		{"end equals start", TimeWindow{date, "10:00", "10:00"}, true},
		{"end before start", TimeWindow{date, "14:00", "13:00"}, true},
		{"bad hour", TimeWindow{date, "24:00", "25:00"}, true},
		{"bad minute", TimeWindow{date, "10:60", "11:00"}, true},
		{"not a clock", TimeWindow{date, "morning", "noon"}, true},
		{"missing date", TimeWindow{time.Time{}, "10:00", "11:00"}, true},
		{"missing end", TimeWindow{date, "10:00", ""}, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			reason := tc.window.Validate()
			if (reason != "") != tc.wantErr {
				t.Errorf("Validate() = %q, wantErr %v", reason, tc.wantErr)
			}
		})
	}
}

func TestTimeWindowStartsAt(t *testing.T) {
	w := TimeWindow{
		Date:  time.Date(2026, 9, 15, 0, 0, 0, 0, time.UTC),
		Start: "9:05",
		End:   "10:00",
	}
	got := w.StartsAt()
	want := time.Date(2026, 9, 15, 9, 5, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("StartsAt() = %v, want %v", got, want)
	}
}

func TestTimeWindowIsFuture(t *testing.T) {
	now := time.Date(2026, 9, 15, 10, 0, 0, 0, time.UTC)

	past := TimeWindow{Date: now, Start: "9:00", End: "10:00"}
	if past.IsFuture(now) {
		t.Error("window starting before now reported as future")
	}

	exact := TimeWindow{Date: now, Start: "10:00", End: "11:00"}
	if exact.IsFuture(now) {
		t.Error("window starting exactly now must not count as future")
	}

	future := TimeWindow{Date: now, Start: "10:01", End: "11:00"}
	if !future.IsFuture(now) {
		t.Error("window starting after now reported as not future")
	}
}
