// Package aggregates defines domain-facing aggregate contracts.
//
// These contracts avoid persistence and transport details and describe the
// write boundaries where cross-aggregate invariants are maintained. The link
// between a category and its items spans two independently stored documents,
// so the association contract is best-effort and its failures are typed.
package aggregates
