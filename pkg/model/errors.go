package model

import "github.com/oneconcern/slides/pkg/errors"

var (
	// ErrInvalidItem reports a manifest entry which is neither a path nor an object
	ErrInvalidItem = errors.New("invalid manifest item")

	// ErrInvalidManifest reports a manifest which is not valid JSON
	ErrInvalidManifest = errors.New("invalid manifest")

	// ErrNotAList reports a list of items which is not a JSON array
	ErrNotAList = errors.New("items must be a list")
)
