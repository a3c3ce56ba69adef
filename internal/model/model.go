package model

import "time"

// Account statuses accepted by the Duo Admin API.
const (
	StatusActive    = "active"
	StatusBypass    = "bypass"
	StatusDisabled  = "disabled"
	StatusLockedOut = "locked_out"
)

// ValidStatus reports whether s is one of the four Duo enrollment statuses.
func ValidStatus(s string) bool {
	switch s {
	case StatusActive, StatusBypass, StatusDisabled, StatusLockedOut:
		return true
	}
	return false
}

// Account is one remote Duo identity record. It is created and mutated only
// by Duo; this side reads it and issues delete/status-change commands.
// The directory sync markers (DirectoryKey, ExternalID, LastDirectorySync)
// flag records whose lifecycle belongs to an external sync process.
type Account struct {
	UserID            string   `json:"user_id"`
	Username          string   `json:"username"`
	RealName          string   `json:"realname,omitempty"`
	Email             string   `json:"email,omitempty"`
	Status            string   `json:"status,omitempty"`
	IsEnrolled        bool     `json:"is_enrolled,omitempty"`
	DirectoryKey      string   `json:"directory_key,omitempty"`
	ExternalID        string   `json:"external_id,omitempty"`
	LastDirectorySync int64    `json:"last_directory_sync,omitempty"`
	PhoneNumbers      []string `json:"phone_numbers,omitempty"`
	Tokens            []string `json:"tokens,omitempty"`
}

type User struct {
	ID         int64
	Username   string
	PassHash   string
	Role       string
	Active     bool
	AuthSource string // "local" or "ldap"
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type Session struct {
	Token     string
	Username  string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// AuditEntry is one row of the dashboard audit trail: logins, manual
// status changes and account lookups. Append-only.
type AuditEntry struct {
	ID         int64
	Username   string
	Action     string
	TargetUser string
	OldStatus  string
	NewStatus  string
	Success    bool
	Detail     string // error text on failure, free-form context otherwise
	IPAddress  string
	CreatedAt  time.Time
}

// Run is one row of the cleanup run history.
type Run struct {
	ID          int64
	StartedAt   time.Time
	DryRun      bool
	Status      string // "completed" or "failed"
	Processed   int
	Deleted     int
	Errors      int
	LogFile     string
	ResultsFile string
	BackupFile  string
	Duration    int // seconds
	TriggeredBy string
}
