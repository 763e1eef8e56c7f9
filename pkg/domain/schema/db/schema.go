package db

import "context"

// SchemaInterface is the schema of the image database.
type SchemaInterface interface {
	// Upgrade applies every version in the schema repository newer than the database's.
	//
	// All versions are applied in one transaction, so a failure leaves the database as it was.
	Upgrade(ctx context.Context) error

	// Version returns the current version of the schema.
	//
	// A database without schema_version table is version 0.
	Version(ctx context.Context) (int, error)

	// Context returns a context which is cancelled when the database gets behind the schema repository.
	//
	// The cause of the cancellation tells which versions are compared.
	Context(ctx context.Context) (context.Context, context.CancelFunc)
}
