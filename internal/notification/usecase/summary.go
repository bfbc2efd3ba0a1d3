package usecase

// RecipientSummary is one recipient's line in a run summary. SkipReason is
// nil when the recipient was (or in a dry run would be) notified.
type RecipientSummary struct {
	RecipientID string  `json:"recipientId"`
	Kind        string  `json:"kind"`
	TokenCount  int     `json:"tokenCount"`
	SkipReason  *string `json:"skipReason"`
}

// Summary is the operator-facing result of one trigger run.
type Summary struct {
	Trigger           string             `json:"trigger"`
	DryRun            bool               `json:"dryRun"`
	NotificationCount int                `json:"notificationCount"`
	MessagesSent      int                `json:"messagesSent"`
	MessagesFailed    int                `json:"messagesFailed"`
	Recipients        []RecipientSummary `json:"recipientsSummary"`
}

func NewSummary(trigger string, opts Options) *Summary {
	return &Summary{Trigger: trigger, DryRun: opts.DryRun, Recipients: []RecipientSummary{}}
}

// Add folds a dispatch report into the summary.
func (s *Summary) Add(r *Report) {
	if r == nil {
		return
	}
	s.NotificationCount += r.NotificationCount
	s.MessagesSent += r.MessagesSent
	s.MessagesFailed += r.MessagesFailed
	for _, oc := range r.Outcomes {
		s.Recipients = append(s.Recipients, RecipientSummary{
			RecipientID: oc.RecipientID,
			Kind:        string(oc.Kind),
			TokenCount:  oc.TokenCount,
			SkipReason:  SkipReasonPtr(oc.SkipReason),
		})
	}
}

func (s *Summary) Notifications() int {
	if s == nil {
		return 0
	}
	return s.NotificationCount
}

// SkipReasonPtr maps an empty reason to JSON null.
func SkipReasonPtr(reason string) *string {
	if reason == "" {
		return nil
	}
	return &reason
}
