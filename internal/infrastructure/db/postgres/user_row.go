package postgres

import (
	"database/sql"
	"time"
)

type userRow struct {
	ID           string
	Subject      string
	FederationID sql.NullString
	DisplayName  string
	AvatarURI    string
	CreatedAt    time.Time
	LastSeenAt   time.Time
}
