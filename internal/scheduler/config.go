package scheduler

import "time"

// Config controls the sweep loop. Zero values fall back to defaults so
// callers can set only what they care about.
type Config struct {
	// RunInterval is the pause between sweep rounds in RunForever.
	RunInterval time.Duration

	// BatchSize caps how many meters or bills one sweep round touches.
	BatchSize int

	// JobTimeout bounds a single job run. Hitting it is treated as a
	// soft stop, not an error: the next round picks up where this one
	// left off.
	JobTimeout time.Duration

	// EnabledJobs restricts which jobs run. Empty means all.
	EnabledJobs []string
}

const (
	defaultRunInterval = time.Minute
	defaultBatchSize   = 100
	defaultJobTimeout  = 30 * time.Second
)

func (c Config) withDefaults() Config {
	if c.RunInterval <= 0 {
		c.RunInterval = defaultRunInterval
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaultBatchSize
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaultJobTimeout
	}
	return c
}

func (c Config) jobEnabled(name string) bool {
	if len(c.EnabledJobs) == 0 {
		return true
	}
	for _, job := range c.EnabledJobs {
		if job == name {
			return true
		}
	}
	return false
}
