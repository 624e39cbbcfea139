package storage

import (
	"encoding/json"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"

	"kb-api/domain"
)

const edmInt64 = "Edm.Int64"

// cardEntity is the table representation of a card. Links are a
// JSON-encoded column because the table service has no list type;
// timestamps need the Edm.Int64 annotation to round-trip as integers.
type cardEntity struct {
	aztables.Entity
	Title         string `json:"Title"`
	Content       string `json:"Content,omitempty"`
	Links         string `json:"Links,omitempty"`
	Category      string `json:"Category"`
	Color         string `json:"Color,omitempty"`
	UserID        string `json:"UserId"`
	CreatedAt     int64  `json:"CreatedAt,string"`
	CreatedAtType string `json:"CreatedAt@odata.type"`
	UpdatedAt     int64  `json:"UpdatedAt,string"`
	UpdatedAtType string `json:"UpdatedAt@odata.type"`
}

// cardUpdateEntity carries a partial merge update for a card row.
type cardUpdateEntity struct {
	aztables.Entity
	Title         *string `json:"Title,omitempty"`
	Content       *string `json:"Content,omitempty"`
	Links         *string `json:"Links,omitempty"`
	Category      *string `json:"Category,omitempty"`
	Color         *string `json:"Color,omitempty"`
	UpdatedAt     *int64  `json:"UpdatedAt,omitempty,string"`
	UpdatedAtType *string `json:"UpdatedAt@odata.type,omitempty"`
}

type categoryEntity struct {
	aztables.Entity
	Name string `json:"Name"`
}

type userEntity struct {
	aztables.Entity
	Username string `json:"Username"`
	Password string `json:"Password"`
	FullName string `json:"FullName,omitempty"`
	Role     string `json:"Role"`
}

// userUpdateEntity carries a partial merge update for a user row.
type userUpdateEntity struct {
	aztables.Entity
	Username *string `json:"Username,omitempty"`
	Password *string `json:"Password,omitempty"`
	FullName *string `json:"FullName,omitempty"`
	Role     *string `json:"Role,omitempty"`
}

func entityKeys(partition, row string) aztables.Entity {
	return aztables.Entity{PartitionKey: partition, RowKey: row}
}

func encodeCardEntity(card domain.Card) ([]byte, error) {
	ent := cardEntity{
		Entity:        entityKeys(cardPartition, card.ID),
		Title:         card.Title,
		Content:       card.Content,
		Category:      card.Category,
		Color:         card.Color,
		UserID:        card.UserID,
		CreatedAt:     card.CreatedAt,
		CreatedAtType: edmInt64,
		UpdatedAt:     card.UpdatedAt,
		UpdatedAtType: edmInt64,
	}
	if len(card.Links) > 0 {
		data, err := json.Marshal(card.Links)
		if err != nil {
			return nil, err
		}
		ent.Links = string(data)
	}
	return json.Marshal(ent)
}

func decodeCardEntity(data []byte) (domain.Card, error) {
	var ent cardEntity
	if err := json.Unmarshal(data, &ent); err != nil {
		return domain.Card{}, err
	}
	card := domain.Card{
		ID:        ent.RowKey,
		Title:     ent.Title,
		Content:   ent.Content,
		Category:  ent.Category,
		Color:     ent.Color,
		UserID:    ent.UserID,
		CreatedAt: ent.CreatedAt,
		UpdatedAt: ent.UpdatedAt,
	}
	if ent.Links != "" {
		if err := json.Unmarshal([]byte(ent.Links), &card.Links); err != nil {
			return domain.Card{}, err
		}
	}
	return card, nil
}

func decodeCategoryEntity(data []byte) (string, error) {
	var ent categoryEntity
	if err := json.Unmarshal(data, &ent); err != nil {
		return "", err
	}
	if ent.Name != "" {
		return ent.Name, nil
	}
	return ent.RowKey, nil
}

func encodeUserEntity(user domain.User) userEntity {
	return userEntity{
		Entity:   entityKeys(userPartition, user.ID),
		Username: user.Username,
		Password: user.Password,
		FullName: user.FullName,
		Role:     string(user.Role),
	}
}

func decodeUserEntity(data []byte) (domain.User, error) {
	var ent userEntity
	if err := json.Unmarshal(data, &ent); err != nil {
		return domain.User{}, err
	}
	return domain.User{
		ID:       ent.RowKey,
		Username: ent.Username,
		Password: ent.Password,
		FullName: ent.FullName,
		Role:     domain.Role(ent.Role),
	}, nil
}

// escapeQueryValue doubles single quotes so user-supplied values are safe
// to interpolate into an OData filter expression.
func escapeQueryValue(v string) string {
	return strings.ReplaceAll(v, "'", "''")
}
