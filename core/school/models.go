package school

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/feira/core"
)

type School struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	City      string    `json:"city"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

// Fair (Feira) is a time-boxed evaluation event scoped to one School.
type Fair struct {
	ID        string    `json:"id"`
	SchoolID  string    `json:"school_id"`
	Name      string    `json:"name"`
	Year      int       `json:"year"`
	StartsOn  time.Time `json:"starts_on"`
	EndsOn    time.Time `json:"ends_on"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Category struct {
	ID        string    `json:"id"`
	SchoolID  string    `json:"school_id"`
	FairID    string    `json:"fair_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Criterion is one named, weighted scoring dimension of a Fair.
type Criterion struct {
	ID        string    `json:"id"`
	SchoolID  string    `json:"school_id"`
	FairID    string    `json:"fair_id"`
	Name      string    `json:"name"`
	Weight    int       `json:"weight"`
	Position  int       `json:"position"`
	CreatedAt time.Time `json:"created_at"`
}

type NewSchool struct {
	Name string `json:"name" validate:"required,notblank"`
	City string `json:"city"`
}

func (ns *NewSchool) Validate(validate *validator.Validate) error {
	ns.Name = core.CleanString(ns.Name)
	ns.City = core.CleanString(ns.City)
	return validate.Struct(ns)
}

type NewFair struct {
	Name     string    `json:"name" validate:"required,notblank"`
	Year     int       `json:"year" validate:"required,min=2000,max=2100"`
	StartsOn time.Time `json:"starts_on"`
	EndsOn   time.Time `json:"ends_on"`
}

func (nf *NewFair) Validate(validate *validator.Validate) error {
	nf.Name = core.CleanString(nf.Name)
	return validate.Struct(nf)
}

// UpdateFair defines what information may be provided to modify an existing Fair.
type UpdateFair struct {
	Name     string     `json:"name"`
	Year     int        `json:"year" validate:"omitempty,min=2000,max=2100"`
	StartsOn *time.Time `json:"starts_on"`
	EndsOn   *time.Time `json:"ends_on"`
	IsActive *bool      `json:"is_active"`
}

func (uf *UpdateFair) Validate(validate *validator.Validate) error {
	uf.Name = core.CleanString(uf.Name)
	return validate.Struct(uf)
}

type NewCategory struct {
	Name string `json:"name" validate:"required,notblank"`
}

func (nc *NewCategory) Validate(validate *validator.Validate) error {
	nc.Name = core.CleanString(nc.Name)
	return validate.Struct(nc)
}

type NewCriterion struct {
	Name     string `json:"name" validate:"required,notblank"`
	Weight   int    `json:"weight" validate:"required,min=1,max=10"`
	Position int    `json:"position" validate:"min=0"`
}

func (nc *NewCriterion) Validate(validate *validator.Validate) error {
	nc.Name = core.CleanString(nc.Name)
	return validate.Struct(nc)
}

type UpdateCriterion struct {
	Name     string `json:"name"`
	Weight   int    `json:"weight" validate:"omitempty,min=1,max=10"`
	Position *int   `json:"position" validate:"omitempty,min=0"`
}

func (uc *UpdateCriterion) Validate(validate *validator.Validate) error {
	uc.Name = core.CleanString(uc.Name)
	return validate.Struct(uc)
}
