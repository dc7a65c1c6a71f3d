package catalog

type Category struct {
	ID          string      `json:"_id,omitempty"`
	Name        string      `json:"name,omitempty"`
	Description string      `json:"description,omitempty"`
	Items       []Reference `json:"item,omitempty"`
}

// HasItem reports whether any entry in Items targets itemID.
func (c Category) HasItem(itemID string) bool {
	for _, ref := range c.Items {
		if ref.TargetID() == itemID {
			return true
		}
	}
	return false
}

// CountItem counts entries targeting itemID; more than one means duplicates.
func (c Category) CountItem(itemID string) int {
	n := 0
	for _, ref := range c.Items {
		if ref.TargetID() == itemID {
			n++
		}
	}
	return n
}

// WithItem returns a copy of c with an item reference appended, unless an entry
// with the same target id is already present. The bool reports whether c changed.
func (c Category) WithItem(itemID string) (Category, bool) {
	if c.HasItem(itemID) {
		return c, false
	}
	out := c.Clone()
	out.Items = append(out.Items, MustReference(itemID, KindItem))
	return out, true
}

// WithoutItem drops every entry targeting itemID.
func (c Category) WithoutItem(itemID string) (Category, bool) {
	out := c.Clone()
	out.Items = out.Items[:0]
	for _, ref := range c.Items {
		if ref.TargetID() != itemID {
			out.Items = append(out.Items, ref)
		}
	}
	return out, len(out.Items) != len(c.Items)
}

// Deduped keeps the first entry per target id, preserving order.
func (c Category) Deduped() (Category, bool) {
	out := c.Clone()
	out.Items = out.Items[:0]
	seen := make(map[string]struct{}, len(c.Items))
	for _, ref := range c.Items {
		if _, ok := seen[ref.TargetID()]; ok {
			continue
		}
		seen[ref.TargetID()] = struct{}{}
		out.Items = append(out.Items, ref)
	}
	return out, len(out.Items) != len(c.Items)
}

func (c Category) Clone() Category {
	out := c
	if c.Items != nil {
		out.Items = make([]Reference, len(c.Items))
		copy(out.Items, c.Items)
	}
	return out
}
