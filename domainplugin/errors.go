package domainplugin

import "errors"

var (
	// ErrDomainNotRegistered is returned by Baseline/Checklist lookups for
	// an unknown domain id. Callers in the review state machine treat a
	// missing plugin as "no plugin" rather than an error — this is
	// surfaced only to distinguish "known empty checklist" from "never
	// registered" at the registry boundary.
	ErrDomainNotRegistered = errors.New("domainplugin: domain not registered")

	// ErrDuplicateDomain is returned when a domain id is registered twice.
	ErrDuplicateDomain = errors.New("domainplugin: domain already registered")
)
