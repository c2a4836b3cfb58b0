package domain

import (
	"errors"
	"time"
)

var ErrCompanyNotFound = errors.New("company not found")

type Company struct {
	ID            string
	Name          string
	Industry      string
	LayoffCount   int
	LastLayoffAt  *time.Time
	EmployeeCount *int
	CreatedAt     time.Time
}
