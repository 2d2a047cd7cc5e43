// services/config_service.go
package services

import (
	"fmt"
	"sync"

	"github.com/winzone/casino-server/config"
	"github.com/winzone/casino-server/models"
	"github.com/winzone/casino-server/persistence"
)

// ConfigService caches the per-game switch and bet bounds. The cache is
// authoritative between writes; every admin update goes through the
// store first and the cache second.
type ConfigService struct {
	db    persistence.Database
	mu    sync.RWMutex
	games map[string]models.GameConfig
}

// NewConfigService loads the stored configs and seeds defaults for any
// game that has none yet, so a fresh database starts with every game
// enabled at the configured bounds.
func NewConfigService(db persistence.Database, defaults config.GamesConfig) (*ConfigService, error) {
	s := &ConfigService{
		db:    db,
		games: make(map[string]models.GameConfig),
	}

	stored, err := db.GameConfigs()
	if err != nil {
		return nil, fmt.Errorf("load game configs: %w", err)
	}
	for _, cfg := range stored {
		s.games[cfg.Game] = cfg
	}

	for _, game := range models.AllGames {
		if _, ok := s.games[game]; ok {
			continue
		}
		cfg := models.GameConfig{
			Game:    game,
			Enabled: true,
			MinBet:  defaults.MinBet,
			MaxBet:  defaults.MaxBet,
		}
		if err := db.SaveGameConfig(&cfg); err != nil {
			return nil, fmt.Errorf("seed config for %s: %w", game, err)
		}
		s.games[game] = cfg
	}

	return s, nil
}

// Game implements the config lookup the settlement engines check on
// every bet.
func (s *ConfigService) Game(name string) (models.GameConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cfg, ok := s.games[name]
	if !ok {
		return models.GameConfig{}, persistence.ErrRecordNotFound
	}
	return cfg, nil
}

// All returns every game config, for the admin surface.
func (s *ConfigService) All() []models.GameConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	configs := make([]models.GameConfig, 0, len(s.games))
	for _, game := range models.AllGames {
		if cfg, ok := s.games[game]; ok {
			configs = append(configs, cfg)
		}
	}
	return configs
}

// Update persists an admin change and swaps it into the cache. Takes
// effect on the next bet.
func (s *ConfigService) Update(cfg models.GameConfig) error {
	known := false
	for _, game := range models.AllGames {
		if game == cfg.Game {
			known = true
			break
		}
	}
	if !known {
		return fmt.Errorf("unknown game %q", cfg.Game)
	}
	if cfg.MinBet <= 0 || cfg.MaxBet < cfg.MinBet {
		return fmt.Errorf("invalid bounds [%d, %d]", cfg.MinBet, cfg.MaxBet)
	}

	if err := s.db.SaveGameConfig(&cfg); err != nil {
		return fmt.Errorf("save config for %s: %w", cfg.Game, err)
	}

	s.mu.Lock()
	s.games[cfg.Game] = cfg
	s.mu.Unlock()
	return nil
}
