package metrics

import (
	"time"

	"codeberg.org/mutker/thermald/internal/errors"
)

const (
	// File system permissions and paths
	defaultDirPerm   = 0o755
	defaultDBPath    = "/var/lib/thermald/metrics.db"
	defaultBatchSize = 60
)

type Config struct {
	DBPath          string
	BatchSize       int
	BatchTimeout    time.Duration
	BackupOnMigrate bool
	// BackupDir defaults to a "backups" directory next to the database.
	BackupDir string
	Enabled   bool
}

func DefaultConfig() Config {
	return Config{
		DBPath:          defaultDBPath,
		BatchSize:       defaultBatchSize,
		BatchTimeout:    30 * time.Second,
		BackupOnMigrate: true,
		Enabled:         false, // Disabled by default
	}
}

func (c Config) Validate() error {
	errFactory := errors.New()

	// Only validate DBPath if metrics is enabled
	if c.Enabled && c.DBPath == "" {
		return errFactory.New(ErrInvalidDBPath)
	}
	if c.Enabled && c.BatchSize <= 0 {
		return errFactory.WithData(ErrInvalidConfig, "batch size must be positive")
	}
	return nil
}
