package domain

import "time"

type SessionID string
type ClientIP string

type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

type Timestamp = time.Time

const (
	// SessionTTL is how long an untouched session stays alive.
	SessionTTL = 3 * time.Hour

	// SweepInterval is how often the background sweep runs.
	SweepInterval = 5 * time.Minute
)
