package svc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"backsim/internal/config"
)

func TestNewServiceContext_WithoutInfrastructure(t *testing.T) {
	c := config.Config{Env: "test"}
	c.TTL = config.CacheTTL{Short: 10, Medium: 60, Long: 300}

	svc := NewServiceContext(c)
	require.NotNil(t, svc)

	assert.Nil(t, svc.DBConn, "no DSN means no database connection")
	assert.Nil(t, svc.Cache, "no redis host means no cache node")
	assert.False(t, svc.CanPersist())

	require.NotNil(t, svc.PortfolioConfig, "portfolio defaults should be resolved")
	assert.Equal(t, "futures", svc.PortfolioConfig.Mode)

	assert.Equal(t, int64(10), int64(svc.TTLs.Short.Seconds()))
	assert.Equal(t, int64(300), int64(svc.TTLs.Long.Seconds()))
}
