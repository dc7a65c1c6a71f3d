package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Price is an opaque price token. It keeps the JSON form it arrived in, a
// string or a number, and writes it back unchanged.
type Price struct {
	text   string
	quoted bool
}

// PriceString is a price the store holds as a JSON string.
func PriceString(s string) Price { return Price{text: s, quoted: true} }

// PriceNumber is a price the store holds as a bare JSON number. lit must be a
// valid number literal.
func PriceNumber(lit string) Price { return Price{text: lit} }

func (p Price) String() string { return p.text }
func (p Price) Quoted() bool   { return p.quoted }
func (p Price) IsZero() bool   { return p == Price{} }

func (p Price) MarshalJSON() ([]byte, error) {
	switch {
	case p.IsZero():
		return []byte("null"), nil
	case p.quoted:
		return json.Marshal(p.text)
	default:
		return []byte(p.text), nil
	}
}

func (p *Price) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0 || bytes.Equal(b, []byte("null")):
		*p = Price{}
		return nil
	case b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*p = PriceString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("price must be a string or a number: %s", b)
	}
	*p = PriceNumber(string(b))
	return nil
}
