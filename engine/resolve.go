package engine

import (
	"strings"

	"github.com/warp/card-rewards/catalog"
)

// ResolveMerchant maps free text to a catalog merchant. Matching is
// case-insensitive on trimmed input: exact name first, then exact alias, then
// the first merchant marked general. With no general merchant it returns a
// zero Merchant (no ID, no categories), which still matches base rules.
func ResolveMerchant(name string, merchants []catalog.Merchant) catalog.Merchant {
	q := normalize(name)

	if q != "" {
		for _, m := range merchants {
			if normalize(m.Name) == q {
				return m
			}
		}
		for _, m := range merchants {
			for _, alias := range m.Aliases {
				if normalize(alias) == q {
					return m
				}
			}
		}
	}

	for _, m := range merchants {
		if m.IsGeneral {
			return m
		}
	}
	return catalog.Merchant{}
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
