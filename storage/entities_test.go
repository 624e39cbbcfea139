package storage

import (
	"strings"
	"testing"

	"kb-api/domain"
)

func TestDecodeCardEntity(t *testing.T) {
	data := []byte(`{
		"PartitionKey": "card",
		"RowKey": "c-1",
		"Title": "Deploy notes",
		"Content": "staging first",
		"Links": "[{\"url\":\"https://x.com\",\"label\":\"X\"}]",
		"Category": "Work",
		"Color": "#3b82f6",
		"UserId": "u-1",
		"CreatedAt": "1700000000000",
		"CreatedAt@odata.type": "Edm.Int64",
		"UpdatedAt": "1700000000000",
		"UpdatedAt@odata.type": "Edm.Int64"
	}`)
	card, err := decodeCardEntity(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if card.ID != "c-1" || card.UserID != "u-1" || card.Category != "Work" {
		t.Fatalf("unexpected card: %+v", card)
	}
	if card.CreatedAt != 1700000000000 || card.UpdatedAt != 1700000000000 {
		t.Fatalf("unexpected timestamps: %+v", card)
	}
	if len(card.Links) != 1 || card.Links[0].URL != "https://x.com" || card.Links[0].Label != "X" {
		t.Fatalf("unexpected links: %+v", card.Links)
	}
}

func TestEncodeCardEntityRoundTrip(t *testing.T) {
	card := domain.Card{
		ID:        "c-2",
		Title:     "T",
		Content:   "C",
		Links:     []domain.Link{{URL: "https://x.com", Label: "X"}},
		Category:  "Work",
		Color:     "#3b82f6",
		UserID:    "u-9",
		CreatedAt: 1700000000001,
		UpdatedAt: 1700000000001,
	}
	payload, err := encodeCardEntity(card)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if !strings.Contains(string(payload), `"CreatedAt@odata.type":"Edm.Int64"`) {
		t.Fatalf("missing odata annotation: %s", payload)
	}
	got, err := decodeCardEntity(payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.ID != card.ID || got.UserID != card.UserID || got.CreatedAt != card.CreatedAt {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	if len(got.Links) != 1 || got.Links[0] != card.Links[0] {
		t.Fatalf("links mismatch: %+v", got.Links)
	}
}

func TestDecodeCardEntityWithoutLinks(t *testing.T) {
	data := []byte(`{"PartitionKey":"card","RowKey":"c-3","Title":"bare","Category":"General","UserId":"u-1","CreatedAt":"1","CreatedAt@odata.type":"Edm.Int64","UpdatedAt":"1","UpdatedAt@odata.type":"Edm.Int64"}`)
	card, err := decodeCardEntity(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if card.Links != nil {
		t.Fatalf("expected no links, got %+v", card.Links)
	}
}

func TestDecodeCategoryEntityFallsBackToRowKey(t *testing.T) {
	name, err := decodeCategoryEntity([]byte(`{"PartitionKey":"category","RowKey":"Ideas"}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if name != "Ideas" {
		t.Fatalf("unexpected name: %s", name)
	}
}

func TestDecodeUserEntity(t *testing.T) {
	data := []byte(`{"PartitionKey":"user","RowKey":"u-7","Username":"alice","Password":"pw","FullName":"Alice","Role":"member"}`)
	user, err := decodeUserEntity(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if user.ID != "u-7" || user.Username != "alice" || user.Role != domain.RoleMember {
		t.Fatalf("unexpected user: %+v", user)
	}
}

func TestEscapeQueryValue(t *testing.T) {
	if got := escapeQueryValue("o'brien"); got != "o''brien" {
		t.Fatalf("unexpected escape: %s", got)
	}
	if got := escapeQueryValue("plain"); got != "plain" {
		t.Fatalf("unexpected escape: %s", got)
	}
}
