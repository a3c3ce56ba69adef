// Package classify decides, per account, whether a Duo record is a stray
// self-enrolled student account or one managed by directory sync. Both
// tests are pure functions of their inputs.
package classify

import (
	"regexp"
	"strings"

	"duoclean/internal/model"
)

var studentPattern = regexp.MustCompile(`^\d{6}$`)

// IsStudentAccount reports whether the username matches the stray student
// pattern: exactly six digits, ignoring any @domain suffix.
func IsStudentAccount(username string) bool {
	local, _, _ := strings.Cut(username, "@")
	return studentPattern.MatchString(local)
}

// IsDirectoryManaged reports whether the record carries any directory
// sync lineage. Managed records must never be deleted here; they belong
// to the sync process and are only flagged for out-of-band removal.
func IsDirectoryManaged(acct *model.Account) bool {
	if acct == nil {
		return false
	}
	return acct.DirectoryKey != "" || acct.ExternalID != "" || acct.LastDirectorySync != 0
}

// Outcome of classifying one username against its fetched record.
type Outcome int

const (
	NotFound Outcome = iota
	DirectoryManaged
	Deletable
)

func (o Outcome) String() string {
	switch o {
	case NotFound:
		return "not_found"
	case DirectoryManaged:
		return "directory_managed"
	case Deletable:
		return "deletable"
	}
	return "unknown"
}

// Classify applies the decision table: absent record → NotFound; present
// with sync markers → DirectoryManaged; otherwise Deletable.
func Classify(acct *model.Account) Outcome {
	switch {
	case acct == nil:
		return NotFound
	case IsDirectoryManaged(acct):
		return DirectoryManaged
	}
	return Deletable
}
