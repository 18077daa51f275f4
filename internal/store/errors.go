package store

import "errors"

var (
	ErrNotFound       = errors.New("record not found")
	ErrNoActivePlan   = errors.New("no active plan")
	ErrPlanInactive   = errors.New("plan is no longer active")
	ErrIncompletePlan = errors.New("plan must have exactly 52 weekly tactics")
	ErrStreakConflict = errors.New("streak changed concurrently")
)
