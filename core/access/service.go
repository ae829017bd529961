package access

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/feira/core"
	"github.com/trezcool/feira/core/school"
	"github.com/trezcool/feira/core/user"
)

var (
	// errors
	ErrNotFound          = core.NewNotFoundError("access request")
	ErrInvalidTransition = errors.New("access request already reviewed")
	ErrSchoolExists      = errors.New("a school with this name already exists")
	ErrRequestPending    = errors.New("a request for this school is already pending")
	ErrUsernamePending   = errors.New("this username is already requested")
)

type (
	// Repository stores access requests.
	// ReviewRequest saves a reviewed request only if the stored one is still pending;
	// otherwise it returns ErrInvalidTransition.
	Repository interface {
		CreateRequest(ctx context.Context, r Request) (Request, error)
		GetRequest(ctx context.Context, id string) (Request, error)
		QueryRequests(ctx context.Context, filter QueryFilter) ([]Request, error)
		ReviewRequest(ctx context.Context, r Request) (Request, error)
	}

	Service struct {
		repo      Repository
		schoolSvc *school.Service
		userSvc   *user.Service
	}
)

func NewService(repo Repository, schoolSvc *school.Service, userSvc *user.Service) *Service {
	return &Service{repo: repo, schoolSvc: schoolSvc, userSvc: userSvc}
}

// checkAvailability ensures the school name and the admin username of a request are still free.
// Pending requests other than `excludedID` also hold their names.
func (svc *Service) checkAvailability(ctx context.Context, schoolName, username, excludedID string) error {
	taken, err := svc.schoolSvc.SchoolNameTaken(ctx, schoolName)
	if err != nil {
		return err
	}
	if taken {
		return core.NewFieldValidationError("school_name", ErrSchoolExists)
	}
	if err = svc.userSvc.CheckUniqueness(ctx, username, ""); err != nil {
		if verr, ok := errors.Cause(err).(*core.ValidationError); ok {
			return core.NewFieldValidationError("admin_username", verr.Err)
		}
		return err
	}

	pending, err := svc.repo.QueryRequests(ctx, QueryFilter{Status: StatusPending, SchoolName: schoolName})
	if err != nil {
		return errors.Wrap(err, "querying pending requests")
	}
	for _, r := range pending {
		if r.ID != excludedID {
			return core.NewFieldValidationError("school_name", ErrRequestPending)
		}
	}
	pending, err = svc.repo.QueryRequests(ctx, QueryFilter{Status: StatusPending, AdminUsername: username})
	if err != nil {
		return errors.Wrap(err, "querying pending requests")
	}
	for _, r := range pending {
		if r.ID != excludedID {
			return core.NewFieldValidationError("admin_username", ErrUsernamePending)
		}
	}
	return nil
}

// Submit files a new pending request. The password is only kept hashed.
func (svc *Service) Submit(ctx context.Context, nr NewRequest) (Request, error) {
	if err := svc.checkAvailability(ctx, nr.SchoolName, nr.AdminUsername, ""); err != nil {
		return Request{}, err
	}
	hash, err := user.HashPassword(nr.Password)
	if err != nil {
		return Request{}, errors.Wrap(err, "hashing password")
	}
	return svc.repo.CreateRequest(ctx, Request{
		SchoolName:    nr.SchoolName,
		City:          nr.City,
		ContactName:   nr.ContactName,
		ContactEmail:  nr.ContactEmail,
		AdminUsername: nr.AdminUsername,
		PasswordHash:  hash,
		Status:        StatusPending,
		CreatedAt:     time.Now().UTC(),
	})
}

func (svc *Service) Get(ctx context.Context, id string) (Request, error) {
	return svc.repo.GetRequest(ctx, id)
}

func (svc *Service) List(ctx context.Context, filter QueryFilter) ([]Request, error) {
	return svc.repo.QueryRequests(ctx, filter)
}

// Approve creates the school and its admin account, then marks the request approved.
// The unique school name keeps concurrent approvals from onboarding a school twice.
func (svc *Service) Approve(ctx context.Context, id string, reviewer user.User) (Request, error) {
	r, err := svc.repo.GetRequest(ctx, id)
	if err != nil {
		return Request{}, err
	}
	if !r.IsPending() {
		return Request{}, ErrInvalidTransition
	}
	if err = svc.checkAvailability(ctx, r.SchoolName, r.AdminUsername, r.ID); err != nil {
		return Request{}, err
	}

	sch, err := svc.schoolSvc.CreateSchool(ctx, school.NewSchool{Name: r.SchoolName, City: r.City})
	if err != nil {
		return Request{}, errors.Wrap(err, "creating school")
	}
	_, err = svc.userSvc.CreateWithHash(ctx, user.User{
		SchoolID:     sch.ID,
		Name:         r.ContactName,
		Username:     r.AdminUsername,
		Email:        r.ContactEmail,
		Roles:        []string{user.RoleSchoolAdmin},
		PasswordHash: r.PasswordHash,
	})
	if err != nil {
		return Request{}, errors.Wrap(err, "creating school admin")
	}

	now := time.Now().UTC()
	r.Status = StatusApproved
	r.SchoolID = sch.ID
	r.ReviewedBy = reviewer.Username
	r.ReviewedAt = &now
	return svc.repo.ReviewRequest(ctx, r)
}

// Reject closes a pending request with a reason.
func (svc *Service) Reject(ctx context.Context, id string, reviewer user.User, rj Rejection) (Request, error) {
	r, err := svc.repo.GetRequest(ctx, id)
	if err != nil {
		return Request{}, err
	}
	if !r.IsPending() {
		return Request{}, ErrInvalidTransition
	}

	now := time.Now().UTC()
	r.Status = StatusRejected
	r.Reason = rj.Reason
	r.ReviewedBy = reviewer.Username
	r.ReviewedAt = &now
	return svc.repo.ReviewRequest(ctx, r)
}
