package config

import (
	"time"

	"github.com/tokendesk/otc-desk/internal/postgres"
	"github.com/tokendesk/otc-desk/pkg/reporting"
)

type Config struct {
	Postgres  postgres.Config  `mapstructure:"postgres"`
	Reporting reporting.Config `mapstructure:"reporting"`
	Archive   ArchiveConfig    `mapstructure:"archive"`
	Janitor   JanitorConfig    `mapstructure:"janitor"`

	// InMemory swaps postgres for the in-process store. Development only:
	// state is lost on restart.
	InMemory bool `mapstructure:"in_memory"`
}

// ArchiveConfig controls the executed-deal export to S3.
type ArchiveConfig struct {
	Disabled bool   `mapstructure:"disabled"`
	Bucket   string `mapstructure:"bucket"`
	Prefix   string `mapstructure:"prefix"`
	Region   string `mapstructure:"region"`
	PageSize int    `mapstructure:"page_size"`
}

// JanitorConfig controls the pending-deal expiry sweeper.
type JanitorConfig struct {
	Disabled bool          `mapstructure:"disabled"`
	Interval time.Duration `mapstructure:"interval"`

	// DefaultExpiry applies to deals whose consignment does not set an
	// execution window of its own.
	DefaultExpiry time.Duration `mapstructure:"default_expiry"`
}
