package routing

import (
	"sort"

	authdomain "mentorhub-backend/internal/auth/domain"
	eventdomain "mentorhub-backend/internal/event/domain"
)

// Supervisors returns the ids of Admin and Quality users in ascending order.
func Supervisors(users []*authdomain.User) []string {
	var ids []string
	for _, u := range users {
		if u.Role().IsSupervisor() {
			ids = append(ids, u.ID)
		}
	}
	sort.Strings(ids)
	return union(ids)
}

// EventOwners is the creator plus the assignees.
func EventOwners(ev *eventdomain.Event) []string {
	return ev.Owners()
}

// SameDayRecipients adds Quality users covering the event's centers to the
// event's owners.
func SameDayRecipients(ev *eventdomain.Event, users []*authdomain.User) []string {
	var quality []string
	for _, u := range users {
		if u.Role() == authdomain.RoleQuality && u.CoversCenters(ev.Centers) {
			quality = append(quality, u.ID)
		}
	}
	sort.Strings(quality)
	return union(ev.Owners(), quality)
}

// AssigneeRecipients is used for reschedule and cancellation notices.
func AssigneeRecipients(ev *eventdomain.Event) []string {
	return union(ev.Assignees)
}

// DeletionRecipients is every stakeholder of the event plus every supervisor.
// A supervisor who is also a stakeholder appears once.
func DeletionRecipients(ev *eventdomain.Event, users []*authdomain.User) []string {
	return union(ev.Stakeholders(), Supervisors(users))
}

func union(lists ...[]string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, list := range lists {
		for _, id := range list {
			if id == "" || seen[id] {
				continue
			}
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
