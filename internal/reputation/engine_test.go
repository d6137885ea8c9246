package reputation

import (
	"strings"
	"testing"
)

func TestRankingDelta(t *testing.T) {
	e := New(DefaultConfig())

	tests := []struct {
		tag  EventTag
		want float64
	}{
		{EventCompleteVisit, 2},
		{EventDeclineVisit, -1},
		{EventNoShow, -5},
		{EventPositiveReview, 5},
		{EventNegativeReview, -3},
		{EventTag("unknown"), 0},
	}

	for _, tc := range tests {
		if got := e.RankingDelta(tc.tag); got != tc.want {
			t.Errorf("RankingDelta(%q) = %v, want %v", tc.tag, got, tc.want)
		}
	}
}

func TestApplyDeltaClamps(t *testing.T) {
	tests := []struct {
		score float64
		delta float64
		want  float64
	}{
		{100, 2, 100},
		{100, -5, 95},
		{3, -5, 0},
		{0, -1, 0},
		{99, 5, 100},
		{50, -3, 47},
	}

	for _, tc := range tests {
		if got := ApplyDelta(tc.score, tc.delta); got != tc.want {
			t.Errorf("ApplyDelta(%v, %v) = %v, want %v", tc.score, tc.delta, got, tc.want)
		}
	}
}

func TestApplyDeltaRepeatedNoShows(t *testing.T) {
	e := New(DefaultConfig())

	score := DefaultRankingScore
	for i := 0; i < 3; i++ {
		score = ApplyDelta(score, e.RankingDelta(EventNoShow))
	}
	if score != 85 {
		t.Fatalf("score after three no-shows = %v, want 85", score)
	}

	// Many more events must never push the score below zero.
	for i := 0; i < 50; i++ {
		score = ApplyDelta(score, e.RankingDelta(EventNoShow))
	}
	if score != 0 {
		t.Fatalf("score after repeated no-shows = %v, want 0", score)
	}
}

func TestWarnings(t *testing.T) {
	e := New(DefaultConfig())

	tests := []struct {
		name     string
		counters Counters
		score    float64
		want     []string
	}{
		{"clean", Counters{}, 100, nil},
		{"declines at threshold", Counters{DeclinedVisitsCount: 10}, 90, []string{WarningHighDeclineRate}},
		{"declines below threshold", Counters{DeclinedVisitsCount: 9}, 91, nil},
		{"no-shows at threshold", Counters{NoShowCount: 3}, 85, []string{WarningNoShow}},
		{"low ranking only", Counters{}, 49.5, []string{WarningLowRanking}},
		{"all three", Counters{NoShowCount: 5, DeclinedVisitsCount: 12}, 20, []string{WarningHighDeclineRate, WarningNoShow, WarningLowRanking}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := e.Warnings(tc.counters, tc.score)
			if len(got) != len(tc.want) {
				t.Fatalf("got %d warnings %v, want codes %v", len(got), got, tc.want)
			}
			for i, w := range got {
				if w.Code != tc.want[i] {
					t.Errorf("warning[%d].Code = %q, want %q", i, w.Code, tc.want[i])
				}
				if w.Message == "" {
					t.Errorf("warning[%d] has empty message", i)
				}
			}
		})
	}
}

func TestShouldFlagBuyer(t *testing.T) {
	e := New(DefaultConfig())

	if e.ShouldFlagBuyer(2) {
		t.Error("ShouldFlagBuyer(2) = true, want false")
	}
	if !e.ShouldFlagBuyer(3) {
		t.Error("ShouldFlagBuyer(3) = false, want true")
	}
	if !e.ShouldFlagBuyer(7) {
		t.Error("ShouldFlagBuyer(7) = false, want true")
	}
}

func TestFlagReasonMentionsCount(t *testing.T) {
	reason := FlagReason(3)
	if !strings.Contains(reason, "3 no-shows") {
		t.Errorf("FlagReason(3) = %q, want it to mention \"3 no-shows\"", reason)
	}
}

func TestCheckAgentEligibility(t *testing.T) {
	e := New(DefaultConfig())

	tests := []struct {
		name       string
		in         EligibilityInput
		wantOK     bool
		wantAction string
	}{
		{"eligible", EligibilityInput{Role: "agent", KYCStatus: "verified"}, true, ""},
		{"wrong role", EligibilityInput{Role: "buyer", KYCStatus: "verified"}, false, ActionNone},
		{"kyc pending", EligibilityInput{Role: "agent", KYCStatus: "pending"}, false, ActionCompleteKYC},
		{"kyc missing", EligibilityInput{Role: "agent"}, false, ActionCompleteKYC},
		{"flagged", EligibilityInput{Role: "agent", KYCStatus: "verified", IsFlagged: true, FlagReason: "fraud report"}, false, ActionContactSupport},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := e.CheckAgentEligibility(tc.in)
			if got.Eligible != tc.wantOK {
				t.Fatalf("Eligible = %v, want %v (reason %q)", got.Eligible, tc.wantOK, got.Reason)
			}
			if got.ActionRequired != tc.wantAction {
				t.Errorf("ActionRequired = %q, want %q", got.ActionRequired, tc.wantAction)
			}
			if !got.Eligible && got.Reason == "" {
				t.Error("ineligible result must carry a reason")
			}
		})
	}
}
