package models

// NotificationKind selects the message template sent to a recipient.
type NotificationKind string

const (
	NotifyAssignmentCreated NotificationKind = "assignment_created"
	NotifyReviewersReleased NotificationKind = "reviewers_released"
	NotifyResultsReleased   NotificationKind = "results_released"
	NotifyDueReminder       NotificationKind = "due_reminder"
)

// NotificationKinds lists every kind a template file must define.
func NotificationKinds() []NotificationKind {
	return []NotificationKind{
		NotifyAssignmentCreated,
		NotifyReviewersReleased,
		NotifyResultsReleased,
		NotifyDueReminder,
	}
}
