package cache

import (
	"strconv"
	"strings"
	"time"

	"backsim/internal/config"
)

// Namespace is the Redis key prefix for the simulator.
const Namespace = "backsim"

// TTLClass represents a config-driven TTL bucket.
type TTLClass string

const (
	TTLShort  TTLClass = "short"
	TTLMedium TTLClass = "medium"
	TTLLong   TTLClass = "long"
)

// TTLSet normalises cache TTLs from config into time.Duration values.
type TTLSet struct {
	Short  time.Duration
	Medium time.Duration
	Long   time.Duration
}

// NewTTLSet converts config TTLs (in seconds) into durations.
func NewTTLSet(cfg config.CacheTTL) TTLSet {
	return TTLSet{
		Short:  durationOrDefault(cfg.Short, 10*time.Second),
		Medium: durationOrDefault(cfg.Medium, time.Minute),
		Long:   durationOrDefault(cfg.Long, 5*time.Minute),
	}
}

func durationOrDefault(seconds int, fallback time.Duration) time.Duration {
	if seconds < 0 {
		return 0
	}
	if seconds == 0 {
		return fallback
	}
	return time.Duration(seconds) * time.Second
}

// Duration returns the configured duration for the given TTL class.
func (t TTLSet) Duration(class TTLClass) time.Duration {
	switch class {
	case TTLShort:
		return t.Short
	case TTLMedium:
		return t.Medium
	case TTLLong:
		return t.Long
	default:
		return 0
	}
}

func formatKey(parts ...string) string {
	values := make([]string, 0, len(parts)+1)
	values = append(values, Namespace)
	for _, part := range parts {
		clean := strings.TrimSpace(part)
		if clean == "" {
			continue
		}
		values = append(values, clean)
	}
	return strings.Join(values, ":")
}

// --- Run Keys ---------------------------------------------------------------

// RunKey stores a single persisted run summary.
func RunKey(runID int64) string {
	return formatKey("run", formatID(runID))
}

// RunsRecentKey holds the most recent run summaries.
func RunsRecentKey() string {
	return formatKey("runs", "recent")
}

// EquityCurveKey stores the msgpack-encoded equity curve of a run.
func EquityCurveKey(runID int64) string {
	return formatKey("run", formatID(runID), "equity")
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}

// --- TTL Helpers ------------------------------------------------------------

// RunTTL returns the TTL for persisted run summaries.
func RunTTL(ttl TTLSet) time.Duration {
	return ttl.Duration(TTLLong)
}

// RunsRecentTTL returns the TTL for the recent runs listing.
func RunsRecentTTL(ttl TTLSet) time.Duration {
	return ttl.Duration(TTLMedium)
}

// EquityCurveTTL returns the TTL for cached equity curves.
func EquityCurveTTL(ttl TTLSet) time.Duration {
	return ttl.Duration(TTLLong)
}
