package api

import (
	"context"

	"kb-api/domain"
)

// Store is the slice of the application state the handlers drive. It is
// satisfied by *state.Store.
type Store interface {
	Login(ctx context.Context, username, password string) (bool, error)
	Logout()
	CurrentUser() (domain.User, bool)
	FetchAll(ctx context.Context) error

	Cards() []domain.Card
	Categories() []string
	Users() []domain.User

	CreateCard(ctx context.Context, draft domain.CardDraft) (domain.Card, error)
	UpdateCard(ctx context.Context, id string, upd domain.CardUpdate) (domain.Card, error)
	DeleteCard(ctx context.Context, id string) error

	AddCategory(ctx context.Context, name string) error
	RenameCategory(ctx context.Context, oldName, newName string) error
	DeleteCategory(ctx context.Context, name string) error

	AddUser(ctx context.Context, draft domain.UserDraft) (domain.User, error)
	UpdateUser(ctx context.Context, id string, upd domain.UserUpdate) (domain.User, error)
	DeleteUser(ctx context.Context, id string) error

	SetSearchQuery(query string)
	SetSelectedCategory(category string)
}

// Authenticator is implemented by types able to extract user IDs from headers.
type Authenticator interface {
	UserIDFromAuthHeader(string) (string, error)
}
