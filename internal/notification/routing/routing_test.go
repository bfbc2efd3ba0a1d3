package routing

import (
	"reflect"
	"testing"

	authdomain "mentorhub-backend/internal/auth/domain"
	eventdomain "mentorhub-backend/internal/event/domain"
	kpidomain "mentorhub-backend/internal/kpi/domain"
)

func mentor(id, evaluator string, centers []string, forms ...string) *kpidomain.Mentor {
	m := &kpidomain.Mentor{ID: id, Name: "Mentor " + id, AssignedFormIDs: forms, AssignedCenters: centers}
	if evaluator != "" {
		m.AssignedEvaluator = &kpidomain.EvaluatorRef{ID: evaluator}
	}
	return m
}

func TestRouteAssignedEvaluator(t *testing.T) {
	t.Parallel()

	route := RoutePendingEvaluations(KPIInput{
		Mentors:     []*kpidomain.Mentor{mentor("m1", "e1", nil, "f1")},
		FormNames:   map[string]string{"f1": "Monthly"},
		TokenCounts: map[string]int{"e1": 1},
	})

	if route.PendingCount != 1 {
		t.Errorf("PendingCount = %d, want 1", route.PendingCount)
	}
	if got := route.Evaluators; !reflect.DeepEqual(got, []string{"e1"}) {
		t.Fatalf("Evaluators = %v, want [e1]", got)
	}
	item := route.ByEvaluator["e1"][0]
	if item.MentorID != "m1" || item.FormName != "Monthly" {
		t.Errorf("item = %+v", item)
	}
}

func TestRouteSkipsRecentSubmissions(t *testing.T) {
	t.Parallel()

	route := RoutePendingEvaluations(KPIInput{
		Mentors:           []*kpidomain.Mentor{mentor("m1", "e1", nil, "f1", "f2")},
		FormNames:         map[string]string{"f1": "Monthly", "f2": "Quarterly"},
		RecentSubmissions: map[string]bool{"m1_Monthly": true},
		TokenCounts:       map[string]int{"e1": 2},
	})

	items := route.ByEvaluator["e1"]
	if len(items) != 1 || items[0].FormID != "f2" {
		t.Errorf("pending = %+v, want only f2", items)
	}
}

func TestRouteFallbackIsFirstMatchByID(t *testing.T) {
	t.Parallel()

	candidates := []*authdomain.User{
		{ID: "q9", AssignedCenters: nil},
		{ID: "q2", AssignedCenters: []string{"north"}},
		{ID: "q1", AssignedCenters: []string{"south"}},
		{ID: "q0"}, // no tokens
	}
	in := KPIInput{
		Mentors: []*kpidomain.Mentor{
			mentor("m1", "", []string{"north"}, "f1"),
			mentor("m2", "e-silent", []string{"east"}, "f1"),
			{ID: "m3", Center: "south", AssignedFormIDs: []string{"f1"}},
		},
		TokenCounts: map[string]int{"q9": 1, "q2": 1, "q1": 3},
		Candidates:  candidates,
	}

	route := RoutePendingEvaluations(in)

	want := map[string][]string{"q2": {"m1"}, "q9": {"m2"}, "q1": {"m3"}}
	for evaluator, mentors := range want {
		items := route.ByEvaluator[evaluator]
		if len(items) != len(mentors) || items[0].MentorID != mentors[0] {
			t.Errorf("%s got %+v, want mentors %v", evaluator, items, mentors)
		}
	}
	if got := route.Evaluators; !reflect.DeepEqual(got, []string{"q1", "q2", "q9"}) {
		t.Errorf("Evaluators = %v", got)
	}

	// same input, same grouping
	again := RoutePendingEvaluations(in)
	if !reflect.DeepEqual(route, again) {
		t.Error("routing is not deterministic")
	}
}

func TestRouteDropsUnreachable(t *testing.T) {
	t.Parallel()

	route := RoutePendingEvaluations(KPIInput{
		Mentors:    []*kpidomain.Mentor{mentor("m1", "e1", []string{"west"}, "f1")},
		Candidates: []*authdomain.User{{ID: "q1", AssignedCenters: []string{"north"}}},
		TokenCounts: map[string]int{
			"q1": 1,
		},
	})

	if len(route.ByEvaluator) != 0 {
		t.Errorf("ByEvaluator = %v, want empty", route.ByEvaluator)
	}
	if len(route.Dropped) != 1 || route.Dropped[0].Reason != DropNoEvaluator {
		t.Errorf("Dropped = %+v", route.Dropped)
	}
	if route.PendingCount != 1 {
		t.Errorf("PendingCount = %d, want 1", route.PendingCount)
	}
}

func TestMentorCount(t *testing.T) {
	t.Parallel()

	items := []kpidomain.PendingEvaluation{{MentorID: "m1"}, {MentorID: "m1"}, {MentorID: "m2"}}
	if got := MentorCount(items); got != 2 {
		t.Errorf("MentorCount() = %d, want 2", got)
	}
}

func TestEventRecipients(t *testing.T) {
	t.Parallel()

	users := []*authdomain.User{
		{ID: "admin1", RawRole: "Admin"},
		{ID: "qa-north", RawRole: "quality", AssignedCenters: []string{"north"}},
		{ID: "qa-all", RawRole: "QUALITY"},
		{ID: "a1", RawRole: "user"},
		{ID: "c1", RawRole: "coordinator"},
	}
	ev := &eventdomain.Event{
		Assignees: []string{"a1", "qa-all"},
		OwnerID:   "c1",
		CreatedBy: eventdomain.Creator{UserID: "c1"},
		Centers:   []string{"south"},
	}

	if got, want := Supervisors(users), []string{"admin1", "qa-all", "qa-north"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Supervisors() = %v, want %v", got, want)
	}
	if got, want := SameDayRecipients(ev, users), []string{"c1", "a1", "qa-all"}; !reflect.DeepEqual(got, want) {
		t.Errorf("SameDayRecipients() = %v, want %v", got, want)
	}
	if got, want := AssigneeRecipients(ev), []string{"a1", "qa-all"}; !reflect.DeepEqual(got, want) {
		t.Errorf("AssigneeRecipients() = %v, want %v", got, want)
	}
	if got, want := DeletionRecipients(ev, users), []string{"a1", "qa-all", "c1", "admin1", "qa-north"}; !reflect.DeepEqual(got, want) {
		t.Errorf("DeletionRecipients() = %v, want %v", got, want)
	}
}
