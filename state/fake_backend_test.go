package state

import (
	"context"
	"errors"

	"kb-api/domain"

	"github.com/google/uuid"
)

// fakeBackend is an in-memory stand-in for the remote table store. Write
// failures can be injected per operation name.
type fakeBackend struct {
	cards      map[string]domain.Card
	categories []string
	users      map[string]domain.User

	failures map[string]error
	calls    []string
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		cards:    map[string]domain.Card{},
		users:    map[string]domain.User{},
		failures: map[string]error{},
	}
}

func (f *fakeBackend) fail(op string) error {
	f.calls = append(f.calls, op)
	return f.failures[op]
}

func (f *fakeBackend) ListCards(ctx context.Context) ([]domain.Card, error) {
	if err := f.fail("ListCards"); err != nil {
		return nil, err
	}
	out := []domain.Card{}
	for _, c := range f.cards {
		out = append(out, c)
	}
	return out, nil
}

func (f *fakeBackend) InsertCard(ctx context.Context, card domain.Card) (domain.Card, error) {
	if err := f.fail("InsertCard"); err != nil {
		return domain.Card{}, err
	}
	if card.ID == "" {
		card.ID = uuid.NewString()
	}
	f.cards[card.ID] = card
	return card, nil
}

func (f *fakeBackend) UpdateCard(ctx context.Context, id string, upd domain.CardUpdate, updatedAt int64) error {
	if err := f.fail("UpdateCard"); err != nil {
		return err
	}
	card, ok := f.cards[id]
	if !ok {
		return errors.New("missing card")
	}
	upd.ApplyTo(&card)
	card.UpdatedAt = updatedAt
	f.cards[id] = card
	return nil
}

func (f *fakeBackend) DeleteCard(ctx context.Context, id string) error {
	if err := f.fail("DeleteCard"); err != nil {
		return err
	}
	delete(f.cards, id)
	return nil
}

func (f *fakeBackend) ReassignCategory(ctx context.Context, oldName, newName string) error {
	if err := f.fail("ReassignCategory"); err != nil {
		return err
	}
	for id, c := range f.cards {
		if c.Category == oldName {
			c.Category = newName
			f.cards[id] = c
		}
	}
	return nil
}

func (f *fakeBackend) ListCategories(ctx context.Context) ([]string, error) {
	if err := f.fail("ListCategories"); err != nil {
		return nil, err
	}
	return append([]string(nil), f.categories...), nil
}

func (f *fakeBackend) InsertCategory(ctx context.Context, name string) error {
	if err := f.fail("InsertCategory"); err != nil {
		return err
	}
	f.categories = append(f.categories, name)
	return nil
}

func (f *fakeBackend) DeleteCategory(ctx context.Context, name string) error {
	if err := f.fail("DeleteCategory"); err != nil {
		return err
	}
	kept := f.categories[:0]
	for _, c := range f.categories {
		if c != name {
			kept = append(kept, c)
		}
	}
	f.categories = kept
	return nil
}

func (f *fakeBackend) ListUsers(ctx context.Context) ([]domain.User, error) {
	if err := f.fail("ListUsers"); err != nil {
		return nil, err
	}
	out := []domain.User{}
	for _, u := range f.users {
		out = append(out, u)
	}
	return out, nil
}

func (f *fakeBackend) InsertUser(ctx context.Context, user domain.User) (domain.User, error) {
	if err := f.fail("InsertUser"); err != nil {
		return domain.User{}, err
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	f.users[user.ID] = user
	return user, nil
}

func (f *fakeBackend) UpdateUser(ctx context.Context, id string, upd domain.UserUpdate) error {
	if err := f.fail("UpdateUser"); err != nil {
		return err
	}
	user, ok := f.users[id]
	if !ok {
		return errors.New("missing user")
	}
	upd.ApplyTo(&user)
	f.users[id] = user
	return nil
}

func (f *fakeBackend) DeleteUser(ctx context.Context, id string) error {
	if err := f.fail("DeleteUser"); err != nil {
		return err
	}
	delete(f.users, id)
	return nil
}

func (f *fakeBackend) LookupCredentials(ctx context.Context, username, password string) (*domain.User, error) {
	if err := f.fail("LookupCredentials"); err != nil {
		return nil, err
	}
	for _, u := range f.users {
		if u.Username == username && u.Password == password {
			match := u
			return &match, nil
		}
	}
	return nil, nil
}

func (f *fakeBackend) called(op string) int {
	n := 0
	for _, c := range f.calls {
		if c == op {
			n++
		}
	}
	return n
}

// memorySession is an in-memory SessionStore for tests.
type memorySession struct {
	id string
}

func (m *memorySession) Load() (string, error) { return m.id, nil }
func (m *memorySession) Save(id string) error  { m.id = id; return nil }
func (m *memorySession) Clear() error          { m.id = ""; return nil }
