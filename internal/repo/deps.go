package repo

import (
	"errors"

	"github.com/zeromicro/go-zero/core/stores/cache"
	"github.com/zeromicro/go-zero/core/stores/sqlx"

	cacheutil "backsim/internal/cache"
)

// Dependencies bundles the shared infrastructure required by repository
// implementations. Cache is optional; repositories degrade to plain DB reads
// without it.
type Dependencies struct {
	DBConn sqlx.SqlConn
	Cache  cache.Cache
	TTL    cacheutil.TTLSet
}

// Set exposes strongly typed repositories to application logic.
type Set struct {
	Runs RunsRepo
}

// New constructs the repository set, validating required dependencies.
func New(deps Dependencies) (*Set, error) {
	if deps.DBConn == nil {
		return nil, errors.New("repo: missing DBConn dependency")
	}
	return &Set{
		Runs: newRunsRepo(deps),
	}, nil
}
