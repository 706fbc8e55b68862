package config

import "sync/atomic"

// Store holds the process-wide analysis configuration with swap-on-reload
// semantics. In-flight analyses keep the pointer they captured; a reload
// never edits a published AnalysisConfig in place.
type Store struct {
	current atomic.Pointer[AnalysisConfig]
}

// NewStore creates a store seeded with the given configuration.
func NewStore(cfg *AnalysisConfig) *Store {
	s := &Store{}
	s.current.Store(cfg)
	return s
}

// Current returns the active configuration snapshot.
func (s *Store) Current() *AnalysisConfig {
	return s.current.Load()
}

// Reload validates the replacement tables and swaps them in atomically.
// On validation failure the active configuration is left untouched.
func (s *Store) Reload(cfg *AnalysisConfig) error {
	applyAnalysisDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}
	s.current.Store(cfg)
	return nil
}

// ReloadFromFile reads, validates and swaps in a configuration file.
func (s *Store) ReloadFromFile(path string) error {
	cfg, err := LoadAnalysisConfig(path)
	if err != nil {
		return err
	}
	s.current.Store(cfg)
	return nil
}
