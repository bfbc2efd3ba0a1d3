package domain

import "time"

// EvaluatorRef is the evaluator a mentor is assigned to
type EvaluatorRef struct {
	ID   string `firestore:"id"`
	Name string `firestore:"name"`
}

// Mentor is an evaluation subject
type Mentor struct {
	ID                string        `firestore:"-"`
	Name              string        `firestore:"name"`
	AssignedFormIDs   []string      `firestore:"assignedFormIds"`
	AssignedEvaluator *EvaluatorRef `firestore:"assignedEvaluator"`
	AssignedCenters   []string      `firestore:"assignedCenters"`
	Center            string        `firestore:"center"` // legacy single center
}

// Centers returns the mentor's centers, falling back to the legacy field.
func (m *Mentor) Centers() []string {
	if len(m.AssignedCenters) > 0 {
		return m.AssignedCenters
	}
	if m.Center != "" {
		return []string{m.Center}
	}
	return nil
}

// EvaluatorID is empty when no evaluator is assigned.
func (m *Mentor) EvaluatorID() string {
	if m.AssignedEvaluator == nil {
		return ""
	}
	return m.AssignedEvaluator.ID
}

// Form is a KPI evaluation form
type Form struct {
	ID   string `firestore:"-"`
	Name string `firestore:"name"`
}

// Submission is a filled evaluation form
type Submission struct {
	ID        string    `firestore:"-"`
	MentorID  string    `firestore:"mentorId"`
	FormID    string    `firestore:"formId"`
	FormName  string    `firestore:"formName"`
	CreatedAt time.Time `firestore:"createdAt"`
}

// Key identifies the (mentor, form) pair a submission covers.
func (s *Submission) Key() string {
	return SubmissionKey(s.MentorID, s.FormName)
}

// SubmissionKey joins mentor and form name the way submissions are indexed.
func SubmissionKey(mentorID, formName string) string {
	return mentorID + "_" + formName
}

// PendingEvaluation is a (mentor, form) pair with no recent submission.
// It is derived on every run and never stored.
type PendingEvaluation struct {
	MentorID   string
	MentorName string
	FormID     string
	FormName   string
	Centers    []string
}
