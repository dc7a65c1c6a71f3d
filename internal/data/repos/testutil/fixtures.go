package testutil

import "github.com/yungbote/catalog-backend/internal/domain/catalog"

func Category(id, name string, itemIDs ...string) catalog.Category {
	c := catalog.Category{ID: id, Name: name, Description: name + " supplies"}
	for _, itemID := range itemIDs {
		c.Items = append(c.Items, catalog.MustReference(itemID, catalog.KindItem))
	}
	return c
}

func Item(id, name, price, categoryID string) catalog.Item {
	it := catalog.Item{ID: id, Name: name, Price: catalog.PriceString(price)}
	if categoryID != "" {
		it = it.WithCategory(categoryID)
	}
	return it
}
