// Package games holds the per-game settlement engines. Every instant game
// goes through the same pipeline: validate, debit the stake, draw, pay,
// finalize, emit. Money never moves except through the ledger.
package games

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/winzone/casino-server/broadcast"
	"github.com/winzone/casino-server/fair"
	"github.com/winzone/casino-server/ledger"
	"github.com/winzone/casino-server/logger"
	"github.com/winzone/casino-server/models"
	"github.com/winzone/casino-server/monitor"
)

var (
	ErrUnknownGame   = errors.New("unknown game")
	ErrGameDisabled  = errors.New("game is disabled")
	ErrBetBounds     = errors.New("stake outside game limits")
	ErrInvalidParams = errors.New("invalid bet parameters")
	ErrBanned        = errors.New("account is banned")
)

// Engine is one instant game. Parse validates the game-specific request
// before any money moves; Play maps a draw to an outcome. Play performs
// no validation and no IO.
type Engine interface {
	Name() string
	Parse(raw json.RawMessage) (interface{}, error)
	Play(stake int64, params interface{}, d *fair.Draw) *Outcome
}

// Outcome is the settled result of one bet.
type Outcome struct {
	Value          string // canonical outcome, recorded on the bet
	Won            bool
	Payout         int64                  // paise, 0 on loss
	MultiplierX100 int64                  // realized multiplier, hundredths
	Detail         map[string]interface{} // game-specific fields for the client
}

// Result is what the bettor gets back over the socket.
type Result struct {
	Game           string                 `json:"game"`
	BetID          string                 `json:"bet_id"`
	Outcome        string                 `json:"outcome"`
	Won            bool                   `json:"won"`
	Payout         int64                  `json:"payout"`
	MultiplierX100 int64                  `json:"multiplier_x100"`
	Balance        int64                  `json:"balance"`
	ServerSeedHash string                 `json:"server_seed_hash"`
	Nonce          int64                  `json:"nonce"`
	Detail         map[string]interface{} `json:"detail,omitempty"`
}

// BetStore is the slice of persistence the settler needs.
type BetStore interface {
	GetUser(userID int64) (*models.User, error)
	NextNonce(userID int64) (int64, error)
	CreateBet(bet *models.Bet) error
	FinalizeBet(bet *models.Bet) error
}

// ConfigSource yields the admin-controlled per-game switch and bounds.
type ConfigSource interface {
	Game(name string) (models.GameConfig, error)
}

// Settler runs the shared settlement pipeline for all instant games.
type Settler struct {
	engines map[string]Engine
	ledger  *ledger.Ledger
	fair    *fair.Provider
	store   BetStore
	configs ConfigSource
	feed    *broadcast.Feed
	metrics *monitor.Monitor
}

func NewSettler(l *ledger.Ledger, p *fair.Provider, store BetStore, configs ConfigSource, feed *broadcast.Feed, metrics *monitor.Monitor) *Settler {
	s := &Settler{
		engines: make(map[string]Engine),
		ledger:  l,
		fair:    p,
		store:   store,
		configs: configs,
		feed:    feed,
		metrics: metrics,
	}
	for _, e := range []Engine{
		NewDice(), NewLimbo(), NewCoinFlip(), NewWheel(), NewSlots(),
	} {
		s.engines[e.Name()] = e
	}
	return s
}

// Engine returns the engine registered for a game.
func (s *Settler) Engine(game string) (Engine, bool) {
	e, ok := s.engines[game]
	return e, ok
}

// PlaceBet validates, debits, draws, pays and finalizes one instant bet.
// Validation order: user -> game enabled -> bounds -> params -> balance.
// Nothing is mutated before every check has passed, and any failure after
// the debit refunds the stake.
func (s *Settler) PlaceBet(userID int64, game string, stake int64, raw json.RawMessage) (*Result, error) {
	engine, ok := s.engines[game]
	if !ok {
		return nil, ErrUnknownGame
	}

	user, err := s.store.GetUser(userID)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if user.Banned {
		return nil, ErrBanned
	}

	cfg, err := s.configs.Game(game)
	if err != nil {
		return nil, fmt.Errorf("load game config: %w", err)
	}
	if !cfg.Enabled {
		return nil, ErrGameDisabled
	}
	if stake < cfg.MinBet || stake > cfg.MaxBet {
		return nil, fmt.Errorf("%w: stake %d not in [%d, %d]", ErrBetBounds, stake, cfg.MinBet, cfg.MaxBet)
	}

	params, err := engine.Parse(raw)
	if err != nil {
		return nil, err
	}

	nonce, err := s.store.NextNonce(userID)
	if err != nil {
		return nil, fmt.Errorf("advance nonce: %w", err)
	}

	betID := uuid.New().String()
	commit := s.fair.Commit()
	seedHash := commit.Hash()

	// Debit before the outcome is known; the balance reflects risk.
	if _, err := s.ledger.Apply(userID, -stake, "bet:"+betID); err != nil {
		return nil, err
	}

	bet := &models.Bet{
		ID:             betID,
		UserID:         userID,
		Game:           game,
		Stake:          stake,
		Params:         string(raw),
		Status:         models.BetPending,
		ClientSeed:     user.ClientSeed,
		ServerSeedHash: seedHash,
		Nonce:          nonce,
		CreatedAt:      time.Now(),
	}
	if err := s.store.CreateBet(bet); err != nil {
		s.refund(userID, stake, betID)
		return nil, fmt.Errorf("record bet: %w", err)
	}

	start := time.Now()
	draw := commit.Draw(game, user.ClientSeed, nonce)
	outcome := engine.Play(stake, params, draw)

	balance := int64(0)
	if outcome.Payout > 0 {
		balance, err = s.ledger.Apply(userID, outcome.Payout, "payout:"+betID)
		if err != nil {
			// The draw is committed but unpayable; undo the whole bet.
			s.refund(userID, stake, betID)
			return nil, fmt.Errorf("credit payout: %w", err)
		}
	} else {
		balance, err = s.ledger.Balance(userID)
		if err != nil {
			balance = 0
		}
	}

	bet.Outcome = outcome.Value
	bet.Won = outcome.Won
	bet.Payout = outcome.Payout
	bet.MultiplierX100 = outcome.MultiplierX100
	bet.SettledAt = time.Now()
	if outcome.Won {
		bet.Status = models.BetWon
	} else {
		bet.Status = models.BetLost
	}
	if err := s.store.FinalizeBet(bet); err != nil {
		// Money already moved correctly; the record stays PENDING for
		// reconciliation. Do not touch the balance again.
		logger.Log.Errorf("Failed to finalize bet %s: %v", betID, err)
	}

	if s.metrics != nil {
		s.metrics.ObserveSettlement(game, stake, outcome.Payout, time.Since(start))
	}
	if s.feed != nil {
		s.feed.Publish(&broadcast.FeedEvent{
			Game:           game,
			UserName:       user.Name,
			Stake:          stake,
			Won:            outcome.Won,
			Payout:         outcome.Payout,
			MultiplierX100: outcome.MultiplierX100,
		})
	}

	return &Result{
		Game:           game,
		BetID:          betID,
		Outcome:        outcome.Value,
		Won:            outcome.Won,
		Payout:         outcome.Payout,
		MultiplierX100: outcome.MultiplierX100,
		Balance:        balance,
		ServerSeedHash: seedHash,
		Nonce:          nonce,
		Detail:         outcome.Detail,
	}, nil
}

func (s *Settler) refund(userID, stake int64, betID string) {
	if _, err := s.ledger.Apply(userID, stake, "refund:"+betID); err != nil {
		logger.Log.Errorf("CRITICAL: failed to refund stake for bet %s: %v", betID, err)
	}
}
