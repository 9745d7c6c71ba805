package frequency

import "strconv"

// Config keys as persisted in storage's config table (§6).
const (
	keyUserWeight       = "frequency.user_weight"
	keyBaseWeight       = "frequency.base_weight"
	keyRecencyWeight    = "frequency.recency_weight"
	keyRecencyDecayDays = "frequency.recency_decay_days"
	keyMaxUserFrequency = "frequency.max_user_frequency"
)

// loadConfigFromStorage reads each scoring key, falling back to
// DefaultConfig's value for any key that's missing or unparseable.
func (s *Store) loadConfigFromStorage() (Config, error) {
	cfg := DefaultConfig()

	if v, err := s.db.Get(keyUserWeight, ""); err != nil {
		return Config{}, err
	} else if f, perr := strconv.ParseFloat(v, 64); perr == nil {
		cfg.UserWeight = f
	}
	if v, err := s.db.Get(keyBaseWeight, ""); err != nil {
		return Config{}, err
	} else if f, perr := strconv.ParseFloat(v, 64); perr == nil {
		cfg.BaseWeight = f
	}
	if v, err := s.db.Get(keyRecencyWeight, ""); err != nil {
		return Config{}, err
	} else if f, perr := strconv.ParseFloat(v, 64); perr == nil {
		cfg.RecencyWeight = f
	}
	if v, err := s.db.Get(keyRecencyDecayDays, ""); err != nil {
		return Config{}, err
	} else if n, perr := strconv.Atoi(v); perr == nil {
		cfg.RecencyDecayDays = n
	}
	if v, err := s.db.Get(keyMaxUserFrequency, ""); err != nil {
		return Config{}, err
	} else if n, perr := strconv.ParseInt(v, 10, 64); perr == nil {
		cfg.MaxUserFrequency = n
	}
	return cfg, nil
}

// saveConfigToStorage persists every scoring key.
func (s *Store) saveConfigToStorage(cfg Config) error {
	sets := map[string]string{
		keyUserWeight:       strconv.FormatFloat(cfg.UserWeight, 'f', -1, 64),
		keyBaseWeight:       strconv.FormatFloat(cfg.BaseWeight, 'f', -1, 64),
		keyRecencyWeight:    strconv.FormatFloat(cfg.RecencyWeight, 'f', -1, 64),
		keyRecencyDecayDays: strconv.Itoa(cfg.RecencyDecayDays),
		keyMaxUserFrequency: strconv.FormatInt(cfg.MaxUserFrequency, 10),
	}
	for k, v := range sets {
		if err := s.db.Set(k, v); err != nil {
			return err
		}
	}
	return nil
}
