package domain

import "strings"

// GeneralCategory is the protected default category. It cannot be deleted
// and receives the cards of any category that is.
const GeneralCategory = "General"

// DefaultCategories seeds the category list whenever the remote table
// comes back empty.
var DefaultCategories = []string{
	GeneralCategory,
	"Work",
	"Personal",
	"Ideas",
	"Resources",
}

// PresetColors is the fixed palette offered by the card editor. Any other
// hex value is still accepted as a custom color.
var PresetColors = []string{
	"#ef4444",
	"#f97316",
	"#eab308",
	"#22c55e",
	"#06b6d4",
	"#3b82f6",
	"#8b5cf6",
	"#d946ef",
	"#64748b",
}

// CategoryExists reports whether name is present in categories, by exact
// string match.
func CategoryExists(categories []string, name string) bool {
	for _, c := range categories {
		if c == name {
			return true
		}
	}
	return false
}

// ValidateNewCategory checks that name may be added to categories. The
// same rule applies to the target name of a rename.
func ValidateNewCategory(categories []string, name string) error {
	if strings.TrimSpace(name) == "" {
		return ErrEmptyCategory
	}
	if CategoryExists(categories, name) {
		return ErrCategoryExists
	}
	return nil
}

// ValidateCategoryDelete checks that name may be removed from categories.
// The protected default and the last remaining category are refused.
func ValidateCategoryDelete(categories []string, name string) error {
	if name == GeneralCategory {
		return ErrProtectedCategory
	}
	if !CategoryExists(categories, name) {
		return ErrUnknownCategory
	}
	if len(categories) <= 1 {
		return ErrLastCategory
	}
	return nil
}
