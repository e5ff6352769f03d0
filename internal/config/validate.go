package config

import (
	"fmt"

	"loanledger/internal/models"
)

// Validate performs business-rule validation on the loaded configuration.
// Load calls it automatically.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in 1..65535 (got %d)", c.Server.Port)
	}
	if err := c.Storage.validate(); err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	if err := c.Ledger.validate(); err != nil {
		return fmt.Errorf("ledger: %w", err)
	}
	if err := c.Clock.validate(); err != nil {
		return fmt.Errorf("clock: %w", err)
	}
	return nil
}

func (s *StorageConfig) validate() error {
	switch s.Driver {
	case DriverFile:
		if s.DataDir == "" {
			return fmt.Errorf("data_dir is required for the file driver")
		}
	case DriverBolt:
		if s.BoltPath == "" {
			return fmt.Errorf("bolt_path is required for the bolt driver")
		}
	default:
		return fmt.Errorf("driver must be %q or %q (got %q)", DriverFile, DriverBolt, s.Driver)
	}
	if s.LoansCollection == "" || s.PenaltiesCollection == "" {
		return fmt.Errorf("collection names must not be empty")
	}
	if s.LoansCollection == s.PenaltiesCollection {
		return fmt.Errorf("loans and penalties collections must differ (both %q)", s.LoansCollection)
	}
	if s.SaveRetries < 0 {
		return fmt.Errorf("save_retries must be >= 0 (got %d)", s.SaveRetries)
	}
	return nil
}

func (l *LedgerConfig) validate() error {
	if l.DailyPenaltyRate <= 0 {
		return fmt.Errorf("daily_penalty_rate must be > 0 (got %d)", l.DailyPenaltyRate)
	}
	if l.DefaultLoanDays <= 0 {
		return fmt.Errorf("default_loan_days must be > 0 (got %d)", l.DefaultLoanDays)
	}
	if l.ApproachingThresholdDays < 0 {
		return fmt.Errorf("approaching_threshold_days must be >= 0 (got %d)", l.ApproachingThresholdDays)
	}
	return nil
}

func (c *ClockConfig) validate() error {
	if c.Date == "" {
		return nil
	}
	if !c.TestMode {
		return fmt.Errorf("date can only be pinned in test_mode")
	}
	if _, err := models.ParseDate(c.Date); err != nil {
		return fmt.Errorf("date %q: use YYYY-MM-DD", c.Date)
	}
	return nil
}
