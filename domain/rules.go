package domain

import "strings"

// VisibleTo reports whether the card may be shown to the acting user:
// admins see every card, members only their own.
func (c Card) VisibleTo(u User) bool {
	return u.IsAdmin() || c.UserID == u.ID
}

// EditableBy reports whether the acting user may modify or delete the
// card. The rule is intentionally the same as visibility.
func (c Card) EditableBy(u User) bool {
	return u.IsAdmin() || c.UserID == u.ID
}

// Matches reports whether query is a case-insensitive substring of any
// searchable field: title, content, category, or a link's URL or label.
// An empty query matches every card.
func (c Card) Matches(query string) bool {
	if query == "" {
		return true
	}
	q := strings.ToLower(query)
	if strings.Contains(strings.ToLower(c.Title), q) ||
		strings.Contains(strings.ToLower(c.Content), q) ||
		strings.Contains(strings.ToLower(c.Category), q) {
		return true
	}
	for _, l := range c.Links {
		if strings.Contains(strings.ToLower(l.URL), q) ||
			(l.Label != "" && strings.Contains(strings.ToLower(l.Label), q)) {
			return true
		}
	}
	return false
}

// FilterCards returns the cards the user may see, narrowed by the search
// query and the selected category. Visibility is applied before any
// filtering; an empty category selects all. Input order is preserved.
func FilterCards(cards []Card, user User, query, category string) []Card {
	out := make([]Card, 0, len(cards))
	for _, c := range cards {
		if !c.VisibleTo(user) {
			continue
		}
		if !c.Matches(query) {
			continue
		}
		if category != "" && c.Category != category {
			continue
		}
		out = append(out, c)
	}
	return out
}
