package services

import (
	"time"

	"officer-review-api/models"
)

// Observer receives workflow outcomes for metrics.
type Observer interface {
	TransitionApplied(from, to models.AssessmentStatus)
	NotificationDelivered(kind models.NotificationKind, delivered bool)
	SummaryGenerated(fallback bool, elapsed time.Duration)
}

type noopObserver struct{}

func (noopObserver) TransitionApplied(models.AssessmentStatus, models.AssessmentStatus) {}
func (noopObserver) NotificationDelivered(models.NotificationKind, bool)                {}
func (noopObserver) SummaryGenerated(bool, time.Duration)                               {}

func observerOrNoop(o Observer) Observer {
	if o == nil {
		return noopObserver{}
	}
	return o
}
