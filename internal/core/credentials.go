package core

import "context"

// CredentialSource supplies the bearer credential for outbound gateway calls.
//
// An empty token with a nil error means no credential is available right now;
// callers treat that as "capability unavailable" and degrade instead of
// failing. Errors are reserved for conditions that stop the caller outright,
// such as context cancellation.
type CredentialSource interface {
	Token(ctx context.Context) (string, error)
}
