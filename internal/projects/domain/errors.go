package domain

import "errors"

var (
	ErrProjectNotFound   = errors.New("project not found")
	ErrTaskNotFound      = errors.New("task not found")
	ErrTimeEntryNotFound = errors.New("time entry not found")
	ErrNameRequired      = errors.New("name is required")
	ErrInvalidStatus     = errors.New("invalid status")
	ErrInvalidTimeRange  = errors.New("end time must be after start time")
	ErrTimerNotRunning   = errors.New("timer is not running")
)
