package repository

import "errors"

var (
	// ErrInvalidArgument is returned before any persistence attempt when a
	// required argument (aggregate, identifier, name, email, claim, login,
	// role name) is nil or blank. Never worth retrying.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrDuplicateIdentity is relayed by the backing collection when an
	// insert or replace violates one of the unique indexes (normalized
	// username, normalized email, login pair). The store performs no
	// pre-check of its own.
	ErrDuplicateIdentity = errors.New("duplicate identity")
)
