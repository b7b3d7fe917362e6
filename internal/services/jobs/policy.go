package jobs

import (
	"fmt"

	"github.com/Windi-Fikriyansyah/inspection_be/internal/apperr"
	"github.com/Windi-Fikriyansyah/inspection_be/internal/models"
)

type actor string

const (
	actorAdmin    actor = "admin"
	actorOwner    actor = "owner"
	actorAssignee actor = "assignee"
	actorNone     actor = "none"
)

// Policy is the single table answering "may this caller move the job to
// that status". Admins may set anything.
type Policy struct {
	allowed map[actor]map[models.JobStatus]bool
}

func set(statuses ...models.JobStatus) map[models.JobStatus]bool {
	m := make(map[models.JobStatus]bool, len(statuses))
	for _, s := range statuses {
		m[s] = true
	}
	return m
}

func DefaultPolicy() Policy {
	return Policy{allowed: map[actor]map[models.JobStatus]bool{
		actorAdmin: set(models.AllJobStatuses...),
		actorOwner: set(
			models.JobStatusCancelled, models.JobStatusAccepted, models.JobStatusDisputed,
			models.JobStatusOnHold, models.JobStatusClosed,
		),
		actorAssignee: set(
			models.JobStatusQuoted, models.JobStatusRejected, models.JobStatusNegotiating,
			models.JobStatusInProgress, models.JobStatusCompleted, models.JobStatusDelivered,
			models.JobStatusDisputed, models.JobStatusOnHold, models.JobStatusClosed,
			models.JobStatusAccepted,
		),
	}}
}

// relation resolves the caller's standing on job. The role must match the
// relation: a client token is never treated as the assignee.
func relation(p models.Principal, job *models.JobRequest) actor {
	switch {
	case p.IsAdmin():
		return actorAdmin
	case p.Role == models.RoleClient && job.IsOwner(p.ID):
		return actorOwner
	case p.Role.IsServiceActor() && job.IsAssignee(p.ID):
		return actorAssignee
	}
	return actorNone
}

func (pol Policy) Allowed(p models.Principal, job *models.JobRequest, target models.JobStatus) bool {
	return pol.allowed[relation(p, job)][target]
}

// CheckTransition returns an authorization error when the caller may not set target.
func (pol Policy) CheckTransition(p models.Principal, job *models.JobRequest, target models.JobStatus) error {
	if !target.Valid() {
		return apperr.Validation("INVALID_STATUS", fmt.Sprintf("unknown job status %q", target))
	}
	if !pol.Allowed(p, job, target) {
		return apperr.Forbidden("TRANSITION_NOT_ALLOWED",
			fmt.Sprintf("%s may not set job status to %s", p.Role, target))
	}
	return nil
}
