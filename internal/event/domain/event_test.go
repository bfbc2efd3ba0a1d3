package domain

import (
	"reflect"
	"testing"
	"time"
)

func TestOwnersAndStakeholders(t *testing.T) {
	t.Parallel()

	ev := &Event{
		Assignees: []string{"a1", "c1", "a2", "a1"},
		OwnerID:   "o1",
		CreatedBy: Creator{UserID: "c1"},
	}
	if got, want := ev.Owners(), []string{"c1", "a1", "a2"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Owners() = %v, want %v", got, want)
	}
	if got, want := ev.Stakeholders(), []string{"a1", "c1", "a2", "o1"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Stakeholders() = %v, want %v", got, want)
	}
}

func TestStartsOnUsesLocation(t *testing.T) {
	t.Parallel()

	loc := time.FixedZone("IST", 5*3600+1800)
	ev := &Event{StartDateTime: time.Date(2026, 10, 16, 20, 0, 0, 0, time.UTC)}

	if !ev.StartsOn(time.Date(2026, 10, 17, 9, 0, 0, 0, loc), loc) {
		t.Error("20:00 UTC should fall on the next day in IST")
	}
	if ev.StartsOn(time.Date(2026, 10, 16, 9, 0, 0, 0, loc), loc) {
		t.Error("event matched the wrong day")
	}
	if (&Event{}).StartsOn(time.Now(), loc) {
		t.Error("an event without start time matched")
	}
}

func TestChangeTransitions(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 10, 20, 10, 0, 0, 0, time.UTC)
	base := Event{Status: StatusInProgress, StartDateTime: start}

	moved := base
	moved.StartDateTime = start.Add(24 * time.Hour)
	done := base
	done.Status = StatusCompleted
	cancelledAndMoved := moved
	cancelledAndMoved.Status = StatusCancelled
	reopened := base
	reopened.Status = StatusPending

	tests := []struct {
		name   string
		change Change
		want   []Transition
	}{
		{"create", Change{Kind: ChangeCreate, After: &base}, []Transition{TransitionCreated}},
		{"delete", Change{Kind: ChangeDelete, Before: &base}, []Transition{TransitionDeleted}},
		{"reschedule", Change{Kind: ChangeUpdate, Before: &base, After: &moved}, []Transition{TransitionRescheduled}},
		{"complete", Change{Kind: ChangeUpdate, Before: &base, After: &done}, []Transition{TransitionCompleted}},
		{"cancel and move", Change{Kind: ChangeUpdate, Before: &base, After: &cancelledAndMoved}, []Transition{TransitionRescheduled, TransitionCancelled}},
		{"status to pending", Change{Kind: ChangeUpdate, Before: &base, After: &reopened}, nil},
		{"no change", Change{Kind: ChangeUpdate, Before: &base, After: &base}, nil},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.change.Transitions(); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Transitions() = %v, want %v", got, tt.want)
			}
		})
	}
}
