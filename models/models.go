package models

import "time"

// Collection / change-feed table names.
const (
	TableJobs           = "jobs"
	TableApplications   = "job_applications"
	TableAssignments    = "job_assignments"
	TableProfiles       = "profiles"
	TableLaborerDetails = "laborer_details"
)

// Job status values.
const (
	JobOpen      = "open"
	JobAssigned  = "assigned"
	JobCompleted = "completed"
	JobCancelled = "cancelled"
)

// Application status values.
const (
	ApplicationPending  = "pending"
	ApplicationAccepted = "accepted"
	ApplicationDeclined = "declined"
)

// Assignment status values.
const (
	AssignmentInProgress = "in_progress"
	AssignmentCompleted  = "completed"
	AssignmentCancelled  = "cancelled"
)

// Payment status values.
const (
	PaymentPending   = "pending"
	PaymentCompleted = "completed"
)

type Job struct {
	ID             string    `bson:"jobid" json:"id"`
	Title          string    `bson:"title" json:"title"`
	Description    string    `bson:"description" json:"description"`
	Budget         float64   `bson:"budget" json:"budget"`
	Location       string    `bson:"location" json:"location"`
	RequiredSkills []string  `bson:"requiredSkills,omitempty" json:"required_skills,omitempty"`
	Status         string    `bson:"status" json:"status"`
	ClientID       string    `bson:"clientId" json:"client_id"`
	CreatedAt      time.Time `bson:"createdAt" json:"created_at"`
	UpdatedAt      time.Time `bson:"updatedAt,omitempty" json:"updated_at,omitempty"`
}

type JobApplication struct {
	ID           string    `bson:"applicationid" json:"id"`
	JobID        string    `bson:"jobid" json:"job_id"`
	LaborerID    string    `bson:"laborerId" json:"laborer_id"`
	ProposedRate float64   `bson:"proposedRate" json:"proposed_rate"`
	Note         string    `bson:"note,omitempty" json:"note,omitempty"`
	Status       string    `bson:"status" json:"status"`
	CreatedAt    time.Time `bson:"createdAt" json:"created_at"`
}

type JobAssignment struct {
	ID            string     `bson:"assignmentid" json:"id"`
	JobID         string     `bson:"jobid" json:"job_id"`
	LaborerID     string     `bson:"laborerId" json:"laborer_id"`
	ClientID      string     `bson:"clientId" json:"client_id"`
	StartDate     *time.Time `bson:"startDate,omitempty" json:"start_date,omitempty"`
	EndDate       *time.Time `bson:"endDate,omitempty" json:"end_date,omitempty"`
	FinalAmount   float64    `bson:"finalAmount" json:"final_amount"`
	Status        string     `bson:"status" json:"status"`
	PaymentStatus string     `bson:"paymentStatus" json:"payment_status"`
	ClientRating  int        `bson:"clientRating,omitempty" json:"client_rating,omitempty"`
	ClientReview  string     `bson:"clientReview,omitempty" json:"client_review,omitempty"`
	LaborerRating int        `bson:"laborerRating,omitempty" json:"laborer_rating,omitempty"`
	LaborerReview string     `bson:"laborerReview,omitempty" json:"laborer_review,omitempty"`
}

type Profile struct {
	ID       string    `bson:"userid" json:"id"`
	FullName string    `bson:"fullName" json:"full_name"`
	Phone    string    `bson:"phone,omitempty" json:"phone,omitempty"`
	UserType string    `bson:"userType" json:"user_type"`
	Address  string    `bson:"address,omitempty" json:"address,omitempty"`
	Bio      string    `bson:"bio,omitempty" json:"bio,omitempty"`
	CreatedAt time.Time `bson:"createdAt,omitempty" json:"created_at,omitempty"`
}

type LaborerDetails struct {
	ID                 string   `bson:"userid" json:"id"`
	HourlyRate         float64  `bson:"hourlyRate" json:"hourly_rate"`
	Skills             []string `bson:"skills,omitempty" json:"skills,omitempty"`
	VerificationStatus string   `bson:"verificationStatus" json:"verification_status"`
	Availability       bool     `bson:"availability" json:"availability"`
	ExperienceYears    int      `bson:"experienceYears,omitempty" json:"experience_years,omitempty"`
	IDProofURL         string   `bson:"idProofUrl,omitempty" json:"id_proof_url,omitempty"`
}
