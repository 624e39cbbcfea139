package domain

// Link is a reference attached to a card. The label is optional display
// text; the URL itself is always shown when no label is present.
type Link struct {
	URL   string `json:"url"`
	Label string `json:"label,omitempty"`
}

// Card is a single knowledge entry as served to the SPA. Timestamps are
// milliseconds since the epoch, matching the store schema.
type Card struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Content   string `json:"content,omitempty"`
	Links     []Link `json:"links,omitempty"`
	Category  string `json:"category"`
	Color     string `json:"color,omitempty"`
	UserID    string `json:"userId"`
	CreatedAt int64  `json:"createdAt"`
	UpdatedAt int64  `json:"updatedAt"`
}

// CardDraft carries the author-editable fields of a new card. Identity,
// ownership and timestamps are stamped by the state store on creation.
type CardDraft struct {
	Title    string `json:"title"`
	Content  string `json:"content"`
	Links    []Link `json:"links"`
	Category string `json:"category"`
	Color    string `json:"color"`
}

// CardUpdate carries partial updates for a card. The owner is never an
// updatable field.
type CardUpdate struct {
	Title    *string `json:"title,omitempty"`
	Content  *string `json:"content,omitempty"`
	Links    *[]Link `json:"links,omitempty"`
	Category *string `json:"category,omitempty"`
	Color    *string `json:"color,omitempty"`
}

// Empty reports whether the update carries no fields at all.
func (u CardUpdate) Empty() bool {
	return u.Title == nil && u.Content == nil && u.Links == nil &&
		u.Category == nil && u.Color == nil
}

// ApplyTo merges the set fields of the update into the card.
func (u CardUpdate) ApplyTo(c *Card) {
	if u.Title != nil {
		c.Title = *u.Title
	}
	if u.Content != nil {
		c.Content = *u.Content
	}
	if u.Links != nil {
		c.Links = *u.Links
	}
	if u.Category != nil {
		c.Category = *u.Category
	}
	if u.Color != nil {
		c.Color = *u.Color
	}
}
