package model_test

import (
	"testing"

	"campusgig/internal/model"
)

// ── ParseJobStatus ──────────────────────────────────────────────────────────

func TestParseJobStatus_ValidValues(t *testing.T) {
	valid := []string{"open", "in_progress", "completed", "cancelled"}
	for _, s := range valid {
		got, err := model.ParseJobStatus(s)
		if err != nil {
			t.Errorf("ParseJobStatus(%q) returned unexpected error: %v", s, err)
		}
		if string(got) != s {
			t.Errorf("ParseJobStatus(%q) = %q, want %q", s, got, s)
		}
	}
}

func TestParseJobStatus_InvalidValue(t *testing.T) {
	for _, s := range []string{"OPEN", "done", "in progress", "inprogress"} {
		if _, err := model.ParseJobStatus(s); err == nil {
			t.Errorf("ParseJobStatus(%q) expected error, got nil", s)
		}
	}
}

func TestParseJobStatus_EmptyString(t *testing.T) {
	_, err := model.ParseJobStatus("")
	if err == nil {
		t.Error("ParseJobStatus(\"\") expected error, got nil")
	}
}

// ── ParseRatingType ─────────────────────────────────────────────────────────

func TestParseRatingType(t *testing.T) {
	for _, s := range []string{"poster_to_helper", "helper_to_poster"} {
		got, err := model.ParseRatingType(s)
		if err != nil {
			t.Errorf("ParseRatingType(%q) returned unexpected error: %v", s, err)
		}
		if string(got) != s {
			t.Errorf("ParseRatingType(%q) = %q, want %q", s, got, s)
		}
	}
	for _, s := range []string{"", "poster", "helper_to_helper", "POSTER_TO_HELPER"} {
		if _, err := model.ParseRatingType(s); err == nil {
			t.Errorf("ParseRatingType(%q) expected error, got nil", s)
		}
	}
}

// ── CanTransition: valid (forward) transitions ─────────────────────────────

func TestCanTransition_ValidForward(t *testing.T) {
	cases := []struct {
		from model.JobStatus
		to   model.JobStatus
	}{
		{model.StatusOpen, model.StatusInProgress},
		{model.StatusInProgress, model.StatusCompleted},
	}
	for _, c := range cases {
		if !model.CanTransition(c.from, c.to) {
			t.Errorf("CanTransition(%s → %s) should be true", c.from, c.to)
		}
	}
}

// ── CanTransition: cancellation is allowed from every active state ─────────

func TestCanTransition_ToCancelled(t *testing.T) {
	active := []model.JobStatus{model.StatusOpen, model.StatusInProgress}
	for _, from := range active {
		if !model.CanTransition(from, model.StatusCancelled) {
			t.Errorf("CanTransition(%s → cancelled) should be true", from)
		}
	}
}

// ── CanTransition: terminal states have no outgoing transitions ────────────

func TestCanTransition_FromTerminal(t *testing.T) {
	terminals := []model.JobStatus{model.StatusCompleted, model.StatusCancelled}
	targets := []model.JobStatus{
		model.StatusOpen,
		model.StatusInProgress,
		model.StatusCompleted,
		model.StatusCancelled,
	}
	for _, from := range terminals {
		for _, to := range targets {
			if model.CanTransition(from, to) {
				t.Errorf("CanTransition(%s → %s) should be false (terminal state)", from, to)
			}
		}
	}
}

// ── CanTransition: skip-level and backwards movements are forbidden ────────

func TestCanTransition_Forbidden(t *testing.T) {
	cases := []struct {
		from model.JobStatus
		to   model.JobStatus
	}{
		{model.StatusOpen, model.StatusCompleted},       // skip in_progress
		{model.StatusInProgress, model.StatusOpen},      // backwards
		{model.StatusCompleted, model.StatusOpen},       // reopen
		{model.StatusCancelled, model.StatusInProgress}, // revive
	}
	for _, c := range cases {
		if model.CanTransition(c.from, c.to) {
			t.Errorf("CanTransition(%s → %s) should be false", c.from, c.to)
		}
	}
}

// ── CanTransition: self-transitions are forbidden ──────────────────────────

func TestCanTransition_Self(t *testing.T) {
	all := []model.JobStatus{
		model.StatusOpen, model.StatusInProgress,
		model.StatusCompleted, model.StatusCancelled,
	}
	for _, s := range all {
		if model.CanTransition(s, s) {
			t.Errorf("CanTransition(%s → %s) should be false (self)", s, s)
		}
	}
}

// ── IsTerminal / HasAssignee ────────────────────────────────────────────────

func TestIsTerminal(t *testing.T) {
	if model.IsTerminal(model.StatusOpen) || model.IsTerminal(model.StatusInProgress) {
		t.Error("open and in_progress are not terminal")
	}
	if !model.IsTerminal(model.StatusCompleted) || !model.IsTerminal(model.StatusCancelled) {
		t.Error("completed and cancelled are terminal")
	}
}

func TestHasAssignee(t *testing.T) {
	want := map[model.JobStatus]bool{
		model.StatusOpen:       false,
		model.StatusInProgress: true,
		model.StatusCompleted:  true,
		model.StatusCancelled:  false,
	}
	for s, expect := range want {
		if model.HasAssignee(s) != expect {
			t.Errorf("HasAssignee(%s) = %v, want %v", s, !expect, expect)
		}
	}
}
