package types

import "errors"

// Store write errors. Uniqueness violations leave the store unchanged.
var (
	ErrDuplicateName     = errors.New("command name already exists")
	ErrDuplicateAlias    = errors.New("connection alias already exists")
	ErrInvalidName       = errors.New("invalid command name")
	ErrInvalidExecutable = errors.New("invalid command executable")
	ErrInvalidProfile    = errors.New("invalid connection profile")
)

// Store read and lifecycle errors.
var (
	ErrNotFound    = errors.New("entity not found")
	ErrStoreClosed = errors.New("store is closed")
	ErrMigration   = errors.New("schema migration failed")
)

// Transfer errors.
var (
	ErrInvalidImportMode = errors.New("unknown import mode")
	ErrInvalidFormat     = errors.New("unknown document format")
)
