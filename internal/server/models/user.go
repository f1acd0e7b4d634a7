package models

import "time"

// User is an identity-provider subject that owns listings. Rows are
// upserted opportunistically on the first listing-creating request.
type User struct {
	// OwnerID is the external identity-provider subject, stable primary key.
	OwnerID      string
	Email        string
	Name         string
	ProfileImage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
