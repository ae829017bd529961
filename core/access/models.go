package access

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/feira/core"
)

// Statuses
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

var AllStatuses = []string{StatusPending, StatusApproved, StatusRejected}

// Request is a school's onboarding request, reviewed by a super admin.
type Request struct {
	ID            string     `json:"id"`
	SchoolName    string     `json:"school_name"`
	City          string     `json:"city"`
	ContactName   string     `json:"contact_name"`
	ContactEmail  string     `json:"contact_email"`
	AdminUsername string     `json:"admin_username"`
	PasswordHash  []byte     `json:"-"`
	Status        string     `json:"status"`
	Reason        string     `json:"reason,omitempty"`
	ReviewedBy    string     `json:"reviewed_by,omitempty"`
	SchoolID      string     `json:"school_id,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`  // UTC
	ReviewedAt    *time.Time `json:"reviewed_at"` // UTC
}

func (r Request) IsPending() bool {
	return r.Status == StatusPending
}

type NewRequest struct {
	SchoolName      string `json:"school_name" validate:"required,notblank"`
	City            string `json:"city"`
	ContactName     string `json:"contact_name" validate:"required,notblank"`
	ContactEmail    string `json:"contact_email" validate:"required,email"`
	AdminUsername   string `json:"admin_username" validate:"required,min=4,alphanum_"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
}

func (nr *NewRequest) Validate(validate *validator.Validate) error {
	nr.SchoolName = core.CleanString(nr.SchoolName)
	nr.City = core.CleanString(nr.City)
	nr.ContactName = core.CleanString(nr.ContactName)
	nr.ContactEmail = core.CleanString(nr.ContactEmail, true /* lower */)
	nr.AdminUsername = core.CleanString(nr.AdminUsername, true /* lower */)
	return validate.Struct(nr)
}

type Rejection struct {
	Reason string `json:"reason" validate:"required,notblank"`
}

func (rj *Rejection) Validate(validate *validator.Validate) error {
	rj.Reason = core.CleanString(rj.Reason)
	return validate.Struct(rj)
}

type QueryFilter struct {
	Status        string
	SchoolName    string // case-insensitive exact match
	AdminUsername string
}
