// Package catalog defines the category and item documents, the reference
// records that link them, and the contract of the remote document stores
// that hold each collection.
//
// Store implementations report failures as *aggregates.Error carrying
// CodeNotFound, CodeConflict or CodeRemoteUnavailable so callers can tell a
// missing document from a collision or an unreachable store.
package catalog
