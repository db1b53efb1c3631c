package retriever

import (
	"time"

	"second-brain/internal/repository/contract"
)

// Strategy names one retrieval strategy.
type Strategy string

const (
	StrategyEntries Strategy = "entries" // full-text over entry blurbs
	StrategyEvents  Strategy = "events"  // full-text over event content
	StrategyVector  Strategy = "vector"  // nearest events by embedding distance
)

// fusionOrder is the presentation rank: full-text matches before semantic ones.
var fusionOrder = []Strategy{StrategyEntries, StrategyEvents, StrategyVector}

const DefaultLimit = 20

type Config struct {
	Strategies      []Strategy
	EntryLimit      int
	EventLimit      int
	VectorLimit     int
	Deduplicate     bool
	Metric          contract.VectorMetric
	DBTimeout       time.Duration
	EmbedTimeout    time.Duration
	EmbedRetries    int
	ConcurrentEmbed bool // overlap the embedding call with the full-text queries
}

func DefaultConfig() Config {
	return Config{
		Strategies:      append([]Strategy(nil), fusionOrder...),
		EntryLimit:      DefaultLimit,
		EventLimit:      DefaultLimit,
		VectorLimit:     DefaultLimit,
		Metric:          contract.MetricL2,
		DBTimeout:       5 * time.Second,
		EmbedTimeout:    10 * time.Second,
		ConcurrentEmbed: true,
	}
}

// normalize fills zero values and reorders strategies into fusion order.
func (c Config) normalize() Config {
	def := DefaultConfig()
	if c.EntryLimit <= 0 {
		c.EntryLimit = def.EntryLimit
	}
	if c.EventLimit <= 0 {
		c.EventLimit = def.EventLimit
	}
	if c.VectorLimit <= 0 {
		c.VectorLimit = def.VectorLimit
	}
	if c.Metric == "" {
		c.Metric = def.Metric
	}
	if c.DBTimeout <= 0 {
		c.DBTimeout = def.DBTimeout
	}
	if c.EmbedTimeout <= 0 {
		c.EmbedTimeout = def.EmbedTimeout
	}
	if c.EmbedRetries < 0 {
		c.EmbedRetries = 0
	}

	enabled := make(map[Strategy]bool, len(c.Strategies))
	for _, s := range c.Strategies {
		enabled[s] = true
	}
	ordered := make([]Strategy, 0, len(fusionOrder))
	for _, s := range fusionOrder {
		if enabled[s] {
			ordered = append(ordered, s)
		}
	}
	c.Strategies = ordered
	return c
}

func (c Config) enabled(s Strategy) bool {
	for _, e := range c.Strategies {
		if e == s {
			return true
		}
	}
	return false
}

func (c Config) limit(s Strategy) int {
	switch s {
	case StrategyEntries:
		return c.EntryLimit
	case StrategyEvents:
		return c.EventLimit
	default:
		return c.VectorLimit
	}
}

// ParseStrategies maps configured names onto strategies, ignoring unknown ones.
func ParseStrategies(names []string) []Strategy {
	out := make([]Strategy, 0, len(names))
	for _, n := range names {
		switch s := Strategy(n); s {
		case StrategyEntries, StrategyEvents, StrategyVector:
			out = append(out, s)
		}
	}
	return out
}
