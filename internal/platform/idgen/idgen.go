// Package idgen assigns document identifiers before the remote store sees a document.
package idgen

import "go.mongodb.org/mongo-driver/bson/primitive"

// Generator produces non-empty identifiers that are unique within a collection.
type Generator interface {
	NewID() string
}

// ObjectID yields 24-character lowercase hex handles, matching the ids the
// document store uses natively.
type ObjectID struct{}

func (ObjectID) NewID() string { return primitive.NewObjectID().Hex() }

// Func adapts a plain function to Generator.
type Func func() string

func (f Func) NewID() string { return f() }
