// Package routing decides who receives a notification. Every function is pure
// over its inputs so runs can be previewed and tested without a store.
package routing

import (
	"sort"

	authdomain "mentorhub-backend/internal/auth/domain"
	kpidomain "mentorhub-backend/internal/kpi/domain"
)

// DropNoEvaluator marks a pending item nobody with a token can act on.
const DropNoEvaluator = "no_evaluator_available"

// KPIInput is everything RoutePendingEvaluations reads.
type KPIInput struct {
	Mentors []*kpidomain.Mentor
	// FormNames maps form id to display name. Missing forms use the id.
	FormNames map[string]string
	// RecentSubmissions holds submission keys created inside the lookback window.
	RecentSubmissions map[string]bool
	// TokenCounts holds the number of resolvable tokens per user id.
	TokenCounts map[string]int
	// Candidates may stand in when a mentor's evaluator cannot be reached.
	Candidates []*authdomain.User
}

// Dropped is a pending item that could not be routed.
type Dropped struct {
	Item   kpidomain.PendingEvaluation
	Reason string
}

// KPIRoute groups pending evaluations by the evaluator who gets reminded.
type KPIRoute struct {
	ByEvaluator map[string][]kpidomain.PendingEvaluation
	// Evaluators lists the keys of ByEvaluator in ascending order.
	Evaluators   []string
	Dropped      []Dropped
	PendingCount int
}

// MentorCount is the number of distinct mentors in items.
func MentorCount(items []kpidomain.PendingEvaluation) int {
	seen := make(map[string]bool, len(items))
	for _, it := range items {
		seen[it.MentorID] = true
	}
	return len(seen)
}

// RoutePendingEvaluations finds every (mentor, form) pair without a recent
// submission and picks who gets reminded about it. The mentor's assigned
// evaluator wins when they have a token. Otherwise the first candidate by
// user id with a token and a matching center is chosen. This is first match,
// not best match: other eligible candidates are not notified.
func RoutePendingEvaluations(in KPIInput) KPIRoute {
	fallbacks := make([]*authdomain.User, 0, len(in.Candidates))
	for _, u := range in.Candidates {
		if u != nil && in.TokenCounts[u.ID] > 0 {
			fallbacks = append(fallbacks, u)
		}
	}
	sort.SliceStable(fallbacks, func(i, j int) bool { return fallbacks[i].ID < fallbacks[j].ID })

	route := KPIRoute{ByEvaluator: make(map[string][]kpidomain.PendingEvaluation)}
	for _, m := range in.Mentors {
		for _, formID := range m.AssignedFormIDs {
			formName := formID
			if name, ok := in.FormNames[formID]; ok && name != "" {
				formName = name
			}
			if in.RecentSubmissions[kpidomain.SubmissionKey(m.ID, formName)] {
				continue
			}

			item := kpidomain.PendingEvaluation{
				MentorID:   m.ID,
				MentorName: m.Name,
				FormID:     formID,
				FormName:   formName,
				Centers:    m.Centers(),
			}
			route.PendingCount++

			target := pickEvaluator(m, in.TokenCounts, fallbacks)
			if target == "" {
				route.Dropped = append(route.Dropped, Dropped{Item: item, Reason: DropNoEvaluator})
				continue
			}
			route.ByEvaluator[target] = append(route.ByEvaluator[target], item)
		}
	}

	for id := range route.ByEvaluator {
		route.Evaluators = append(route.Evaluators, id)
	}
	sort.Strings(route.Evaluators)
	return route
}

func pickEvaluator(m *kpidomain.Mentor, tokens map[string]int, fallbacks []*authdomain.User) string {
	if id := m.EvaluatorID(); id != "" && tokens[id] > 0 {
		return id
	}
	centers := m.Centers()
	for _, u := range fallbacks {
		if u.CoversCenters(centers) {
			return u.ID
		}
	}
	return ""
}
