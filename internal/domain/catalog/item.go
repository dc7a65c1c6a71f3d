package catalog

type Item struct {
	ID       string     `json:"_id,omitempty"`
	Name     string     `json:"name,omitempty"`
	Price    Price      `json:"price,omitzero"`
	Category *Reference `json:"category,omitempty"`
}

// BelongsTo reports whether the item's category reference targets categoryID.
func (i Item) BelongsTo(categoryID string) bool {
	return i.Category != nil && i.Category.Points(categoryID, KindCategory)
}

// WithCategory returns a copy of i pointing at categoryID.
func (i Item) WithCategory(categoryID string) Item {
	ref := MustReference(categoryID, KindCategory)
	i.Category = &ref
	return i
}
