package catalog

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Kind tags which collection a Reference points into.
type Kind string

// Tag values are the strings persisted in stored documents.
const (
	KindUser     Kind = "User"
	KindCategory Kind = "category"
	KindItem     Kind = "item"
)

func (k Kind) Valid() bool {
	switch k {
	case KindUser, KindCategory, KindItem:
		return true
	default:
		return false
	}
}

// ParseKind accepts the persisted tags case-insensitively.
func ParseKind(raw string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "user":
		return KindUser, nil
	case "category":
		return KindCategory, nil
	case "item":
		return KindItem, nil
	default:
		return "", fmt.Errorf("unknown reference kind %q", raw)
	}
}

// Reference is an embedded pointer from one document to a document in another
// collection. The target id is opaque and never interpreted. Values are
// immutable and compare with ==.
type Reference struct {
	targetID   string
	targetKind Kind
}

func NewReference(targetID string, kind Kind) (Reference, error) {
	if targetID == "" {
		return Reference{}, fmt.Errorf("reference target id is required")
	}
	if !kind.Valid() {
		return Reference{}, fmt.Errorf("unknown reference kind %q", kind)
	}
	return Reference{targetID: targetID, targetKind: kind}, nil
}

// MustReference panics on invalid input; for ids already known to be non-empty.
func MustReference(targetID string, kind Kind) Reference {
	ref, err := NewReference(targetID, kind)
	if err != nil {
		panic(err)
	}
	return ref
}

func (r Reference) TargetID() string { return r.targetID }
func (r Reference) TargetKind() Kind { return r.targetKind }
func (r Reference) IsZero() bool     { return r == Reference{} }

func (r Reference) Equal(o Reference) bool { return r == o }

func (r Reference) Points(id string, kind Kind) bool {
	return r.targetID == id && r.targetKind == kind
}

func (r Reference) String() string {
	return fmt.Sprintf("%s:%s", r.targetKind, r.targetID)
}

type referenceWire struct {
	ID  string `json:"_id"`
	Ref string `json:"_ref"`
}

func (r Reference) MarshalJSON() ([]byte, error) {
	return json.Marshal(referenceWire{ID: r.targetID, Ref: string(r.targetKind)})
}

// UnmarshalJSON accepts _id as a plain string or in the extended form
// {"$oid": "..."} that the store uses for ObjectId values.
func (r *Reference) UnmarshalJSON(b []byte) error {
	var w struct {
		ID  json.RawMessage `json:"_id"`
		Ref string          `json:"_ref"`
	}
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	id, err := decodeTargetID(w.ID)
	if err != nil {
		return err
	}
	kind, err := ParseKind(w.Ref)
	if err != nil {
		return err
	}
	ref, err := NewReference(id, kind)
	if err != nil {
		return err
	}
	*r = ref
	return nil
}

func decodeTargetID(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", nil
	}
	var id string
	if err := json.Unmarshal(raw, &id); err == nil {
		return id, nil
	}
	var oid struct {
		OID string `json:"$oid"`
	}
	if err := json.Unmarshal(raw, &oid); err != nil || oid.OID == "" {
		return "", fmt.Errorf("reference _id must be a string or {\"$oid\": ...}: %s", raw)
	}
	return oid.OID, nil
}
