package core

import "time"

type Employee struct {
	ID         string    `json:"id"`
	UserID     string    `json:"userId"`
	FirstName  string    `json:"firstName"`
	LastName   string    `json:"lastName"`
	Email      string    `json:"email"`
	Department string    `json:"department"`
	ManagerID  string    `json:"managerId,omitempty"`
	StartDate  time.Time `json:"startDate"`
	Status     string    `json:"status"`
}
