package data

import (
	"database/sql"

	"github.com/devricklin/channel-curator/internal/biz/repo"
)

// Repositories contains the store-backed repositories
type Repositories struct {
	DB          *sql.DB
	Message     repo.MessageRepo
	Dedup       repo.DedupRepo
	Summary     repo.SummaryRepo
	SpamKeyword repo.SpamKeywordRepo
}

// NewRepositories opens the store and creates all store-backed repositories
func NewRepositories(dbPath, spamKeywordsPath string) (*Repositories, error) {
	db, err := OpenDB(dbPath)
	if err != nil {
		return nil, err
	}

	return &Repositories{
		DB:          db,
		Message:     NewMessageRepo(db),
		Dedup:       NewDedupRepo(db),
		Summary:     NewSummaryRepo(db),
		SpamKeyword: NewSpamKeywordRepo(spamKeywordsPath),
	}, nil
}

// Close closes the store
func (r *Repositories) Close() error {
	return r.DB.Close()
}
