// Package aggregates contains implementations of the domain aggregate contracts.
//
// The association aggregate coordinates two remote collections that share no
// transaction boundary. It writes one side, then read-modify-writes the other,
// and reports each run as linked, failed, or partially applied.
package aggregates
