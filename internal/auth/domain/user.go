package domain

import "strings"

// Role is a user's dashboard role. Stored values are matched case-insensitively.
type Role string

const (
	RoleAdmin       Role = "admin"
	RoleQuality     Role = "quality"
	RoleEvaluator   Role = "evaluator"
	RoleCoordinator Role = "coordinator"
	RoleUser        Role = "user"
)

// ParseRole normalizes a stored role string.
func ParseRole(s string) Role {
	return Role(strings.ToLower(strings.TrimSpace(s)))
}

// IsSupervisor reports whether the role receives supervisor notifications.
func (r Role) IsSupervisor() bool {
	return r == RoleAdmin || r == RoleQuality
}

// User is a dashboard user as read from the users collection.
type User struct {
	ID                   string   `firestore:"-"`
	Name                 string   `firestore:"name"`
	Email                string   `firestore:"email"`
	RawRole              string   `firestore:"role"`
	AssignedCenters      []string `firestore:"assignedCenters"`
	FCMToken             string   `firestore:"fcmToken"` // legacy single token
	NotificationsEnabled *bool    `firestore:"notificationsEnabled"`
}

func (u *User) Role() Role {
	return ParseRole(u.RawRole)
}

// CoversCenters reports whether the user may act for any of centers. An empty
// assignment means the user covers every center.
func (u *User) CoversCenters(centers []string) bool {
	if len(u.AssignedCenters) == 0 {
		return true
	}
	for _, mine := range u.AssignedCenters {
		for _, c := range centers {
			if mine == c {
				return true
			}
		}
	}
	return false
}

// UserDevice is one registered push endpoint of a user. The document id is the token.
type UserDevice struct {
	Token    string `firestore:"token"`
	Enabled  *bool  `firestore:"enabled"`
	Platform string `firestore:"platform"`
}

// IsEnabled treats a missing enabled field as enabled.
func (d *UserDevice) IsEnabled() bool {
	return d.Enabled == nil || *d.Enabled
}
