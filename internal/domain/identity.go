package domain

// Identity resolution. Commissions arrive from producers that do not reliably
// share an id field: seed data has none, legacy persisted records predate the
// field, submissions mint one. These helpers are pure functions of their
// inputs so dedup behavior can be tested in isolation.

// ResolveIdentity returns the stable identity of a commission: the explicit id
// when present, otherwise the title-artist composite.
func ResolveIdentity(c Commission) string {
	if c.ID != "" {
		return c.ID
	}
	return c.Title + "-" + c.Artist
}

// IdentityCandidates lists every identity form a producer may have used for
// this record: id, title-artist, and the legacy title-artist-date composite.
func IdentityCandidates(c Commission) []string {
	forms := make([]string, 0, 3)
	if c.ID != "" {
		forms = append(forms, c.ID)
	}
	forms = append(forms, c.Title+"-"+c.Artist)
	if c.Date != "" {
		forms = append(forms, c.Title+"-"+c.Artist+"-"+c.Date)
	}
	return forms
}

// MatchesIdentity reports whether any identity form of c equals identity.
func MatchesIdentity(c Commission, identity string) bool {
	for _, form := range IdentityCandidates(c) {
		if form == identity {
			return true
		}
	}
	return false
}

// Dedupe collapses the given collections into one, keeping at most one record
// per resolved identity. Inputs are iterated in argument order and the first
// record seen for an identity wins, so callers pass the most authoritative
// collection first (typically persisted user data before built-in seed data).
func Dedupe(lists ...[]Commission) []Commission {
	seen := make(map[string]struct{})
	var out []Commission
	for _, list := range lists {
		for _, c := range list {
			key := ResolveIdentity(c)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, c)
		}
	}
	return out
}
