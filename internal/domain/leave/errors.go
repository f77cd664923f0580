package leave

import "errors"

var (
	ErrRequestNotFound = errors.New("leave request not found")
	ErrBalanceNotFound = errors.New("leave balance not found")
	ErrPolicyNotFound  = errors.New("leave policy not found")
	ErrInvalidState    = errors.New("invalid request state")
	ErrForbidden       = errors.New("forbidden")
	ErrNotApprover     = errors.New("caller is not the current approver")
	ErrInvalidDays     = errors.New("days must be a positive number")
	ErrQuotaType       = errors.New("annual leave quota is not a bookable leave type")
	ErrPolicyExists    = errors.New("policy for leave type already exists")
)
