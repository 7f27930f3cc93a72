package progspec

import "errors"

var (
	// ErrUnsupportedFormat is returned for unrecognized file formats.
	ErrUnsupportedFormat = errors.New("progspec: unsupported document format")

	// ErrParsingFailed is returned when a document cannot be read as a
	// Programme Specification at all.
	ErrParsingFailed = errors.New("progspec: parsing failed")

	// ErrInvalidRecord is returned when an extracted record fails validation
	// and is therefore not loaded.
	ErrInvalidRecord = errors.New("progspec: extracted record is invalid")

	// ErrNotLoadable is returned when a valid record lacks a key the catalog
	// needs, such as the academic year.
	ErrNotLoadable = errors.New("progspec: record cannot be loaded into the catalog")

	// ErrNotFound is returned when a catalog lookup matches nothing.
	ErrNotFound = errors.New("progspec: not found")

	// ErrStoreClosed is returned when operating on a closed engine.
	ErrStoreClosed = errors.New("progspec: store is closed")

	// ErrInvalidConfig is returned for invalid configuration values.
	ErrInvalidConfig = errors.New("progspec: invalid configuration")
)
