// Package authz provides the authorisation hook every mutating Voice
// operation runs before executing. The core only branches on its result;
// the real decision (PolicyKit, a D-Bus peer allow-list, …) is a
// collaborator's problem.
package authz

import "context"

// Checker authorises a subject for a named capability. "voice" is the only
// capability this daemon currently checks.
type Checker interface {
	Authorize(ctx context.Context, subject, capability string) error
}

// AllowAll is the permissive default: every subject is authorised for
// every capability. Suitable for local/dev use; production deployments
// should supply a real Checker.
type AllowAll struct{}

func (AllowAll) Authorize(ctx context.Context, subject, capability string) error { return nil }

// AllowList authorises only D-Bus unique names present in its set.
type AllowList struct {
	allowed map[string]bool
}

// NewAllowList builds an AllowList from the given subject names.
func NewAllowList(subjects ...string) *AllowList {
	a := &AllowList{allowed: make(map[string]bool, len(subjects))}
	for _, s := range subjects {
		a.allowed[s] = true
	}
	return a
}

func (a *AllowList) Authorize(ctx context.Context, subject, capability string) error {
	if a.allowed[subject] {
		return nil
	}
	return errUnauthorized{subject: subject, capability: capability}
}

type errUnauthorized struct {
	subject    string
	capability string
}

func (e errUnauthorized) Error() string {
	return "subject " + e.subject + " is not authorised for capability " + e.capability
}
