// Package errors provides sentinel errors for building the navigation index.
// Typed errors elsewhere wrap these so callers can match with errors.Is.
package errors

import "errors"

var (
	// ErrDuplicateID indicates two descriptors share the same id.
	ErrDuplicateID = errors.New("duplicate document id")

	// ErrInvalidDescriptor indicates a descriptor is missing required fields.
	ErrInvalidDescriptor = errors.New("invalid document descriptor")

	// ErrUnknownCategory indicates a descriptor names a category absent from the category order.
	ErrUnknownCategory = errors.New("unknown sidebar category")

	// ErrInvalidCategoryOrder indicates the declared category order is empty, repeats a
	// category, or nests a category under an undeclared parent.
	ErrInvalidCategoryOrder = errors.New("invalid category order")

	// ErrNotFound indicates a lookup of an id that is not part of the published index.
	ErrNotFound = errors.New("document not found")

	// ErrIndexMismatch indicates the flat entries do not cover exactly the documents of the tree.
	ErrIndexMismatch = errors.New("flat index does not match navigation tree")

	// ErrDocsDirNotFound indicates the configured docs directory does not exist.
	ErrDocsDirNotFound = errors.New("documentation directory not found")

	// ErrFrontMatter indicates a document's front matter could not be parsed.
	ErrFrontMatter = errors.New("invalid front matter")
)
