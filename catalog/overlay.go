package catalog

// Override carries the cosmetic fields a secondary store may change on a
// card. Nil fields leave the authoritative value in place.
type Override struct {
	ImageURL *string `json:"image_url,omitempty"`
	Note     *string `json:"note,omitempty"`
	Hidden   *bool   `json:"hidden,omitempty"`
}

// IsEmpty reports whether the override changes nothing.
func (o Override) IsEmpty() bool {
	return o.ImageURL == nil && o.Note == nil && o.Hidden == nil
}

// Merge applies overrides to copies of the authoritative cards. Rules, rates
// and fees always come from the authoritative side; overrides for unknown
// card IDs are ignored.
func Merge(authoritative []Card, overrides map[CardID]Override) []Card {
	out := make([]Card, len(authoritative))
	for i, c := range authoritative {
		merged := c.Clone()
		if o, ok := overrides[c.ID]; ok {
			if o.ImageURL != nil {
				merged.ImageURL = *o.ImageURL
			}
			if o.Note != nil {
				merged.Note = *o.Note
			}
			if o.Hidden != nil {
				merged.Hidden = *o.Hidden
			}
		}
		out[i] = merged
	}
	return out
}
