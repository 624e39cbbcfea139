package domain

import "errors"

var (
	// ErrEmptyCategory rejects blank or whitespace-only category names.
	ErrEmptyCategory = errors.New("category name is empty")
	// ErrCategoryExists rejects a name already present in the category set.
	ErrCategoryExists = errors.New("category already exists")
	// ErrProtectedCategory rejects deletion of the default category.
	ErrProtectedCategory = errors.New("the default category cannot be deleted")
	// ErrLastCategory rejects deletion of the sole remaining category.
	ErrLastCategory = errors.New("the last category cannot be deleted")
	// ErrUnknownCategory marks operations against a name not in the set.
	ErrUnknownCategory = errors.New("unknown category")
)
