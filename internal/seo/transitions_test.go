package seo_test

import (
	"testing"

	"seowibe/rank-service/internal/seo"
)

// ── ParseStatus ────────────────────────────────────────────────────────────

func TestParseStatus_ValidValues(t *testing.T) {
	valid := []string{"generated", "in_progress", "applied", "top_reached"}
	for _, s := range valid {
		got, err := seo.ParseStatus(s)
		if err != nil {
			t.Errorf("ParseStatus(%q) returned unexpected error: %v", s, err)
		}
		if string(got) != s {
			t.Errorf("ParseStatus(%q) = %q, want %q", s, got, s)
		}
	}
}

func TestParseStatus_InvalidValue(t *testing.T) {
	_, err := seo.ParseStatus("archived")
	if err == nil {
		t.Error("ParseStatus(\"archived\") expected error, got nil")
	}
}

func TestParseStatus_EmptyString(t *testing.T) {
	_, err := seo.ParseStatus("")
	if err == nil {
		t.Error("ParseStatus(\"\") expected error, got nil")
	}
}

// ── IsTransitionAllowed — valid (forward) transitions ─────────────────────

func TestIsTransitionAllowed_ValidForward(t *testing.T) {
	cases := []struct {
		from, to seo.Status
	}{
		{seo.StatusGenerated, seo.StatusInProgress},
		{seo.StatusGenerated, seo.StatusApplied},
		{seo.StatusGenerated, seo.StatusTopReached},
		{seo.StatusInProgress, seo.StatusApplied},
		{seo.StatusInProgress, seo.StatusTopReached},
		{seo.StatusApplied, seo.StatusTopReached},
		{seo.StatusApplied, seo.StatusInProgress},
	}
	for _, c := range cases {
		if !seo.IsTransitionAllowed(c.from, c.to) {
			t.Errorf("IsTransitionAllowed(%s, %s) = false, want true", c.from, c.to)
		}
	}
}

// ── IsTransitionAllowed — regression edge ─────────────────────────────────

func TestIsTransitionAllowed_Regression(t *testing.T) {
	if !seo.IsTransitionAllowed(seo.StatusTopReached, seo.StatusInProgress) {
		t.Error("top_reached → in_progress is the one allowed regression")
	}
	for _, to := range []seo.Status{seo.StatusGenerated, seo.StatusApplied} {
		if seo.IsTransitionAllowed(seo.StatusTopReached, to) {
			t.Errorf("IsTransitionAllowed(top_reached, %s) = true, want false", to)
		}
	}
}

func TestIsTransitionAllowed_NeverBackToGenerated(t *testing.T) {
	for _, from := range []seo.Status{seo.StatusInProgress, seo.StatusApplied, seo.StatusTopReached} {
		if seo.IsTransitionAllowed(from, seo.StatusGenerated) {
			t.Errorf("IsTransitionAllowed(%s, generated) = true, want false", from)
		}
	}
}

func TestIsTransitionAllowed_SelfTransition(t *testing.T) {
	for _, s := range []seo.Status{seo.StatusGenerated, seo.StatusInProgress, seo.StatusApplied, seo.StatusTopReached} {
		if !seo.IsTransitionAllowed(s, s) {
			t.Errorf("IsTransitionAllowed(%s, %s) = false, want true", s, s)
		}
	}
}

// ── IsRecheckable ──────────────────────────────────────────────────────────

func TestIsRecheckable(t *testing.T) {
	if !seo.IsRecheckable(seo.StatusApplied) || !seo.IsRecheckable(seo.StatusInProgress) {
		t.Error("applied and in_progress jobs are picked up by the background loop")
	}
	if seo.IsRecheckable(seo.StatusGenerated) || seo.IsRecheckable(seo.StatusTopReached) {
		t.Error("generated and top_reached jobs must wait for an explicit action")
	}
}
