// Package apperrors defines the error taxonomy shared across the service.
//
// Handlers map these sentinels to transport status codes; internal callers
// should wrap them with fmt.Errorf("%w: ...", apperrors.Invalid) rather than
// invent new ad-hoc error shapes, so a single errors.Is check at the API
// boundary is enough to pick the right response.
package apperrors

import "errors"

var (
	// AuthRequired means the caller did not present a credential.
	AuthRequired = errors.New("auth required")
	// AuthInvalid means the presented credential is malformed or expired.
	AuthInvalid = errors.New("auth invalid")
	// Forbidden means the caller is authenticated but not allowed to do this.
	Forbidden = errors.New("forbidden")
	// NotFound means the referenced entity does not exist.
	NotFound = errors.New("not found")
	// Invalid means the request violates an input contract or invariant.
	Invalid = errors.New("invalid")
	// Conflict means a compare-and-swap lost a race (ticket accept, upload confirm).
	Conflict = errors.New("conflict")
	// RateLimited means the caller exceeded a budget.
	RateLimited = errors.New("rate limited")
	// Unavailable means an external provider failed past its deadline and the
	// core degraded gracefully rather than surface the failure verbatim.
	Unavailable = errors.New("unavailable")
	// Internal is the catch-all for otherwise-unclassified failures.
	Internal = errors.New("internal")
)

// Is reports whether err (or anything it wraps) is the given sentinel.
// Thin wrapper kept for call-site readability next to the errors.* above.
func Is(err, target error) bool { return errors.Is(err, target) }
