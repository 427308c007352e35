package turso

import (
	"database/sql"

	"github.com/intura-ai/intura-go/internal/ports"
)

// Repositories holds the turso repository implementations as port interfaces.
type Repositories struct {
	Releases ports.ReleaseJournal
	Usage    ports.UsageRepository
}

func NewRepositories(db *sql.DB) *Repositories {
	return &Repositories{
		Releases: NewReleaseRepository(db),
		Usage:    NewUsageRepository(db),
	}
}
