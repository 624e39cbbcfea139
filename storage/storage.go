package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/google/uuid"

	"kb-api/domain"
)

// Each table holds a single logical partition so select-all reads stay
// single-partition scans. Row keys carry the record identity: the card or
// user id, or the category name.
const (
	cardPartition     = "card"
	categoryPartition = "category"
	userPartition     = "user"
)

// Storage provides access to the hosted table store.
type Storage struct {
	cardTable     *aztables.Client
	categoryTable *aztables.Client
	userTable     *aztables.Client
}

// New creates a Storage instance from the given connection string.
func New(connStr, cardsTable, categoriesTable, usersTable string) (*Storage, error) {
	tablesClientOptions := aztables.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    3,
				TryTimeout:    time.Minute * 3,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 15,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	svc, err := aztables.NewServiceClientFromConnectionString(connStr, &tablesClientOptions)
	if err != nil {
		return nil, err
	}
	return &Storage{
		cardTable:     svc.NewClient(cardsTable),
		categoryTable: svc.NewClient(categoriesTable),
		userTable:     svc.NewClient(usersTable),
	}, nil
}

// ListCards retrieves every card in the table, regardless of owner.
// Visibility is the caller's concern.
func (s *Storage) ListCards(ctx context.Context) ([]domain.Card, error) {
	pager := s.cardTable.NewListEntitiesPager(nil)
	cards := []domain.Card{}
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, raw := range resp.Entities {
			card, err := decodeCardEntity(raw)
			if err != nil {
				return nil, err
			}
			cards = append(cards, card)
		}
	}
	return cards, nil
}

// InsertCard persists a new card and returns the stored record. A blank
// ID is replaced with a generated one; the table service does not echo
// inserted rows, so the returned record is the entity that was written.
func (s *Storage) InsertCard(ctx context.Context, card domain.Card) (domain.Card, error) {
	if card.ID == "" {
		card.ID = uuid.NewString()
	}
	payload, err := encodeCardEntity(card)
	if err != nil {
		return domain.Card{}, err
	}
	if _, err := s.cardTable.AddEntity(ctx, payload, nil); err != nil {
		return domain.Card{}, err
	}
	return card, nil
}

// UpdateCard merges the set fields of upd into the stored card and stamps
// the update timestamp. The owner column is never touched.
func (s *Storage) UpdateCard(ctx context.Context, id string, upd domain.CardUpdate, updatedAt int64) error {
	ent := cardUpdateEntity{Entity: entityKeys(cardPartition, id)}
	ent.Title = upd.Title
	ent.Content = upd.Content
	ent.Category = upd.Category
	ent.Color = upd.Color
	if upd.Links != nil {
		data, err := json.Marshal(*upd.Links)
		if err != nil {
			return err
		}
		links := string(data)
		ent.Links = &links
	}
	edm := edmInt64
	ent.UpdatedAt = &updatedAt
	ent.UpdatedAtType = &edm
	payload, err := json.Marshal(ent)
	if err != nil {
		return err
	}
	et := azcore.ETagAny
	_, err = s.cardTable.UpdateEntity(ctx, payload, &aztables.UpdateEntityOptions{
		IfMatch:    &et,
		UpdateMode: aztables.UpdateModeMerge,
	})
	return err
}

// DeleteCard removes the card with the given id.
func (s *Storage) DeleteCard(ctx context.Context, id string) error {
	_, err := s.cardTable.DeleteEntity(ctx, cardPartition, id, nil)
	return err
}

// ReassignCategory rewrites the category of every card currently filed
// under oldName. It returns on the first failed update; cards rewritten
// before the failure keep the new name.
func (s *Storage) ReassignCategory(ctx context.Context, oldName, newName string) error {
	filter := "Category eq '" + escapeQueryValue(oldName) + "'"
	pager := s.cardTable.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return err
		}
		for _, raw := range resp.Entities {
			var keys aztables.Entity
			if err := json.Unmarshal(raw, &keys); err != nil {
				return err
			}
			ent := cardUpdateEntity{
				Entity:   aztables.Entity{PartitionKey: keys.PartitionKey, RowKey: keys.RowKey},
				Category: &newName,
			}
			payload, err := json.Marshal(ent)
			if err != nil {
				return err
			}
			et := azcore.ETagAny
			if _, err := s.cardTable.UpdateEntity(ctx, payload, &aztables.UpdateEntityOptions{
				IfMatch:    &et,
				UpdateMode: aztables.UpdateModeMerge,
			}); err != nil {
				return err
			}
		}
	}
	return nil
}

// ListCategories retrieves all category names.
func (s *Storage) ListCategories(ctx context.Context) ([]string, error) {
	pager := s.categoryTable.NewListEntitiesPager(nil)
	names := []string{}
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, raw := range resp.Entities {
			name, err := decodeCategoryEntity(raw)
			if err != nil {
				return nil, err
			}
			names = append(names, name)
		}
	}
	return names, nil
}

// InsertCategory adds a category. The name doubles as the row key, so a
// duplicate insert surfaces as the service's conflict error.
func (s *Storage) InsertCategory(ctx context.Context, name string) error {
	ent := categoryEntity{Entity: entityKeys(categoryPartition, name), Name: name}
	payload, err := json.Marshal(ent)
	if err != nil {
		return err
	}
	_, err = s.categoryTable.AddEntity(ctx, payload, nil)
	return err
}

// DeleteCategory removes a category by name.
func (s *Storage) DeleteCategory(ctx context.Context, name string) error {
	_, err := s.categoryTable.DeleteEntity(ctx, categoryPartition, name, nil)
	return err
}

// ListUsers retrieves every account, passwords included; callers strip
// them before anything leaves the process.
func (s *Storage) ListUsers(ctx context.Context) ([]domain.User, error) {
	pager := s.userTable.NewListEntitiesPager(nil)
	users := []domain.User{}
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, raw := range resp.Entities {
			user, err := decodeUserEntity(raw)
			if err != nil {
				return nil, err
			}
			users = append(users, user)
		}
	}
	return users, nil
}

// InsertUser persists a new account and returns the stored record. A
// blank ID is replaced with a generated one.
func (s *Storage) InsertUser(ctx context.Context, user domain.User) (domain.User, error) {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	payload, err := json.Marshal(encodeUserEntity(user))
	if err != nil {
		return domain.User{}, err
	}
	if _, err := s.userTable.AddEntity(ctx, payload, nil); err != nil {
		return domain.User{}, err
	}
	return user, nil
}

// UpdateUser merges the set fields of upd into the stored account.
func (s *Storage) UpdateUser(ctx context.Context, id string, upd domain.UserUpdate) error {
	ent := userUpdateEntity{Entity: entityKeys(userPartition, id)}
	ent.Username = upd.Username
	ent.Password = upd.Password
	ent.FullName = upd.FullName
	if upd.Role != nil {
		role := string(*upd.Role)
		ent.Role = &role
	}
	payload, err := json.Marshal(ent)
	if err != nil {
		return err
	}
	et := azcore.ETagAny
	_, err = s.userTable.UpdateEntity(ctx, payload, &aztables.UpdateEntityOptions{
		IfMatch:    &et,
		UpdateMode: aztables.UpdateModeMerge,
	})
	return err
}

// DeleteUser removes the account with the given id.
func (s *Storage) DeleteUser(ctx context.Context, id string) error {
	_, err := s.userTable.DeleteEntity(ctx, userPartition, id, nil)
	return err
}

// LookupCredentials performs the exact-match username/password lookup
// used for login. It returns nil without error when no row matches, so
// callers cannot tell an unknown user from a wrong password.
func (s *Storage) LookupCredentials(ctx context.Context, username, password string) (*domain.User, error) {
	filter := "Username eq '" + escapeQueryValue(username) +
		"' and Password eq '" + escapeQueryValue(password) + "'"
	pager := s.userTable.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, raw := range resp.Entities {
			user, err := decodeUserEntity(raw)
			if err != nil {
				return nil, err
			}
			return &user, nil
		}
	}
	return nil, nil
}
