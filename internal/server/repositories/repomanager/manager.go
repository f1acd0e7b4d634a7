package repomanager

import (
	"context"
	"database/sql"

	"github.com/swapwithus/listing-service/internal/dbx"
	"github.com/swapwithus/listing-service/internal/server/repositories/images"
	"github.com/swapwithus/listing-service/internal/server/repositories/listings"
	"github.com/swapwithus/listing-service/internal/server/repositories/users"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Listings(db dbx.DBTX) listings.Repository
	Images(db dbx.DBTX) images.Repository
}
