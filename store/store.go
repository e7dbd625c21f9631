// Package store abstracts the backing store consumed by the lifecycle engine
// and the dashboard aggregators. The Mongo implementation lives in db; Memory
// below backs tests and single-node use.
package store

import (
	"context"
	"errors"
	"time"

	"laborease/models"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned by InsertApplication when a pending
	// application for the same (job, laborer) pair already exists. The
	// check runs inside the store so concurrent submits cannot race past it.
	ErrDuplicate = errors.New("duplicate")
)

// AssignmentPatch carries the mutable assignment fields. Nil fields are left
// untouched.
type AssignmentPatch struct {
	Status        *string
	EndDate       *time.Time
	PaymentStatus *string
	ClientRating  *int
	ClientReview  *string
	LaborerRating *int
	LaborerReview *string
}

type Store interface {
	// Tx runs fn atomically where the backend supports it; at minimum it
	// serializes multi-step lifecycle sequences against each other.
	Tx(ctx context.Context, fn func(ctx context.Context) error) error

	InsertJob(ctx context.Context, job *models.Job) error
	GetJob(ctx context.Context, id string) (*models.Job, error)
	ListJobsByClient(ctx context.Context, clientID string, statuses ...string) ([]models.Job, error)
	ListOpenJobs(ctx context.Context, limit int) ([]models.Job, error)
	SetJobStatus(ctx context.Context, id, status string) error

	InsertApplication(ctx context.Context, app *models.JobApplication) error
	GetApplication(ctx context.Context, id string) (*models.JobApplication, error)
	ListApplicationsByJobAndLaborer(ctx context.Context, jobID, laborerID string) ([]models.JobApplication, error)
	ListApplicationsByLaborer(ctx context.Context, laborerID, status string) ([]models.JobApplication, error)
	SetApplicationStatus(ctx context.Context, id, status string) error
	// DeclinePendingApplications closes every pending application for the
	// job except exceptID (pass "" to close all).
	DeclinePendingApplications(ctx context.Context, jobID, exceptID string) error

	InsertAssignment(ctx context.Context, a *models.JobAssignment) error
	GetAssignment(ctx context.Context, id string) (*models.JobAssignment, error)
	// GetActiveAssignmentByJob returns the job's non-cancelled assignment,
	// or ErrNotFound.
	GetActiveAssignmentByJob(ctx context.Context, jobID string) (*models.JobAssignment, error)
	ListAssignmentsByLaborer(ctx context.Context, laborerID, status string) ([]models.JobAssignment, error)
	UpdateAssignment(ctx context.Context, id string, patch AssignmentPatch) error

	GetProfile(ctx context.Context, id string) (*models.Profile, error)
	GetLaborerDetails(ctx context.Context, id string) (*models.LaborerDetails, error)
}
