package domain

import "errors"

var (
	// ErrCatalogNotFound indicates the catalog content could not be loaded.
	ErrCatalogNotFound = errors.New("catalog not found")
	// ErrCategoryNotFound indicates a selected category ID is not in the catalog.
	ErrCategoryNotFound = errors.New("category not found")
	// ErrNoCategorySelected is returned when an answer arrives with no active category.
	ErrNoCategorySelected = errors.New("no category selected")
	// ErrEmptyCatalog indicates a catalog with no categories.
	ErrEmptyCatalog = errors.New("catalog has no categories")
	// ErrEmptyCategory indicates a category with no questions.
	ErrEmptyCategory = errors.New("category has no questions")
)
