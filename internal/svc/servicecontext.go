package svc

import (
	"database/sql"
	"log"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx driver
	"github.com/zeromicro/go-zero/core/stores/cache"
	"github.com/zeromicro/go-zero/core/stores/redis"
	"github.com/zeromicro/go-zero/core/stores/sqlx"
	"github.com/zeromicro/go-zero/core/syncx"

	cacheutil "backsim/internal/cache"
	"backsim/internal/config"
	"backsim/internal/repo"
	"backsim/pkg/portfolio"
)

type ServiceContext struct {
	Config config.Config

	// Account tunables resolved from the portfolio section (or defaults).
	PortfolioConfig *portfolio.Config

	TTLs cacheutil.TTLSet

	// Optional persistence; nil when no Postgres DSN is configured.
	DBConn sqlx.SqlConn
	Cache  cache.Cache
	Repos  *repo.Set
}

func NewServiceContext(c config.Config) *ServiceContext {
	svc := &ServiceContext{
		Config:          c,
		PortfolioConfig: c.PortfolioConfig(),
		TTLs:            cacheutil.NewTTLSet(c.TTL),
	}

	if c.Redis.Host != "" {
		rds, err := redis.NewRedis(c.Redis)
		if err != nil {
			log.Fatalf("failed to connect redis: %v", err)
		}
		svc.Cache = cache.NewNode(rds, syncx.NewSingleFlight(), cache.NewStat(cacheutil.Namespace), sql.ErrNoRows)
	}

	if c.Postgres.DSN != "" {
		svc.DBConn = sqlx.NewSqlConn("pgx", c.Postgres.DSN)
		repos, err := repo.New(repo.Dependencies{
			DBConn: svc.DBConn,
			Cache:  svc.Cache,
			TTL:    svc.TTLs,
		})
		if err != nil {
			log.Fatalf("failed to build repositories: %v", err)
		}
		svc.Repos = repos
	}

	return svc
}

// CanPersist reports whether run results can be stored.
func (s *ServiceContext) CanPersist() bool {
	return s.Repos != nil
}
