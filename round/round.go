// Package round runs the scheduled games: rounds open for betting on a
// fixed cadence, lock, settle every bet against one shared draw, and
// immediately open the next round. One scheduler per game.
package round

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/winzone/casino-server/broadcast"
	"github.com/winzone/casino-server/fair"
	"github.com/winzone/casino-server/games"
	"github.com/winzone/casino-server/ledger"
	"github.com/winzone/casino-server/logger"
	"github.com/winzone/casino-server/models"
	"github.com/winzone/casino-server/monitor"
	"github.com/winzone/casino-server/network"
	"github.com/winzone/casino-server/state"
	"github.com/winzone/casino-server/timer"
)

const historySize = 20

var (
	ErrBetsClosed = errors.New("betting is closed for this round")
	ErrAlreadyBet = errors.New("one bet per round")
)

// Store is the slice of persistence the scheduler needs.
type Store interface {
	GetUser(userID int64) (*models.User, error)
	CreateBet(bet *models.Bet) error
	FinalizeBet(bet *models.Bet) error
	SaveRound(rec *models.RoundRecord) error
}

type roundBet struct {
	betID  string
	userID int64
	pick   string
	stake  int64
}

// BetAck confirms an accepted round bet.
type BetAck struct {
	RoundID string `json:"round_id"`
	BetID   string `json:"bet_id"`
	Pick    string `json:"pick"`
	Stake   int64  `json:"stake"`
	Balance int64  `json:"balance"`
}

// Snapshot is the round state sent to a client joining mid-round.
type Snapshot struct {
	Game           string                `json:"game"`
	RoundID        string                `json:"round_id"`
	ServerSeedHash string                `json:"server_seed_hash"`
	Phase          string                `json:"phase"`
	SecondsLeft    int                   `json:"seconds_left"`
	History        []*models.RoundRecord `json:"history"`
}

// Scheduler owns the round cycle for one scheduled game. A 100ms ticker
// drives the phase state machine; bets arrive from session goroutines.
type Scheduler struct {
	resolver    Resolver
	ledger      *ledger.Ledger
	fair        *fair.Provider
	store       Store
	configs     games.ConfigSource
	broadcaster broadcast.Broadcaster
	feed        *broadcast.Feed
	metrics     *monitor.Monitor
	clock       timer.Clock

	bettingFor time.Duration
	lockedFor  time.Duration

	mu       sync.Mutex
	machine  state.StateMachine
	betting  state.State
	locked   state.State
	settling state.State
	roundID  string
	seq      int64
	commit   *fair.Commitment
	seedHash string
	deadline time.Time
	bets     map[int64]*roundBet
	history  []*models.RoundRecord
	lastTick int

	ticker    *time.Ticker
	closeChan chan bool
	closeOnce sync.Once
}

func NewScheduler(resolver Resolver, l *ledger.Ledger, p *fair.Provider, store Store, configs games.ConfigSource, b broadcast.Broadcaster, feed *broadcast.Feed, metrics *monitor.Monitor, clock timer.Clock, bettingFor, lockedFor time.Duration) *Scheduler {
	s := &Scheduler{
		resolver:    resolver,
		ledger:      l,
		fair:        p,
		store:       store,
		configs:     configs,
		broadcaster: b,
		feed:        feed,
		metrics:     metrics,
		clock:       clock,
		bettingFor:  bettingFor,
		lockedFor:   lockedFor,
		bets:        make(map[int64]*roundBet),
		closeChan:   make(chan bool),
		lastTick:    -1,
	}

	betting := &bettingPhase{scheduler: s}
	locked := &lockedPhase{scheduler: s}
	settling := &settlingPhase{scheduler: s}
	betting.ID, locked.ID, settling.ID = "betting", "locked", "settling"

	s.betting, s.locked, s.settling = betting, locked, settling
	s.machine = state.NewBaseStateMachine(betting)
	s.machine.AddTransition(betting, locked, nil)
	s.machine.AddTransition(locked, settling, nil)
	s.machine.AddTransition(settling, betting, nil)

	s.mu.Lock()
	s.openRoundLocked()
	s.mu.Unlock()
	return s
}

// Start launches the ticker loop.
func (s *Scheduler) Start() {
	s.ticker = time.NewTicker(100 * time.Millisecond)
	go s.loop()
}

func (s *Scheduler) Stop() {
	s.closeOnce.Do(func() {
		close(s.closeChan)
	})
}

func (s *Scheduler) loop() {
	for {
		select {
		case <-s.ticker.C:
			s.Update()
		case <-s.closeChan:
			s.ticker.Stop()
			return
		}
	}
}

// Update drives the current phase once. Exported so tests can step the
// scheduler with a fake clock instead of waiting on the ticker.
func (s *Scheduler) Update() {
	s.machine.GetCurrentState().OnUpdate()
}

func (s *Scheduler) Game() string { return s.resolver.Game() }

// Phase returns the current phase ID.
func (s *Scheduler) Phase() string {
	return s.machine.GetCurrentState().GetID()
}

// HandleAction routes a player's raw payload to the current phase.
func (s *Scheduler) HandleAction(player state.Player, data []byte) error {
	return s.machine.GetCurrentState().HandleAction(player, data)
}

// Snapshot is what a joining client needs to render the round.
func (s *Scheduler) Snapshot() *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	secondsLeft := int(s.deadline.Sub(s.clock.Now()).Seconds())
	if secondsLeft < 0 {
		secondsLeft = 0
	}
	history := make([]*models.RoundRecord, len(s.history))
	copy(history, s.history)

	return &Snapshot{
		Game:           s.Game(),
		RoundID:        s.roundID,
		ServerSeedHash: s.seedHash,
		Phase:          s.Phase(),
		SecondsLeft:    secondsLeft,
		History:        history,
	}
}

// PlaceBet accepts one bet into the open round. Rejected outright when
// the round is locked or the user already bet this round; money moves
// only after every check passes.
func (s *Scheduler) PlaceBet(userID, stake int64, rawPick json.RawMessage) (*BetAck, error) {
	game := s.Game()

	pick, err := s.resolver.ParsePick(rawPick)
	if err != nil {
		return nil, err
	}

	user, err := s.store.GetUser(userID)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if user.Banned {
		return nil, games.ErrBanned
	}

	cfg, err := s.configs.Game(game)
	if err != nil {
		return nil, fmt.Errorf("load game config: %w", err)
	}
	if !cfg.Enabled {
		return nil, games.ErrGameDisabled
	}
	if stake < cfg.MinBet || stake > cfg.MaxBet {
		return nil, fmt.Errorf("%w: stake %d not in [%d, %d]", games.ErrBetBounds, stake, cfg.MinBet, cfg.MaxBet)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// The ticker only notices an expired deadline on its next pass, so
	// check the clock too; a bet after the deadline is late even if the
	// phase has not flipped yet.
	if s.Phase() != "betting" || !s.clock.Now().Before(s.deadline) {
		return nil, ErrBetsClosed
	}
	if _, exists := s.bets[userID]; exists {
		return nil, ErrAlreadyBet
	}

	betID := uuid.New().String()
	balance, err := s.ledger.Apply(userID, -stake, "bet:"+betID)
	if err != nil {
		return nil, err
	}

	bet := &models.Bet{
		ID:             betID,
		UserID:         userID,
		Game:           game,
		Stake:          stake,
		Params:         string(rawPick),
		Status:         models.BetPending,
		ClientSeed:     s.roundID,
		ServerSeedHash: s.seedHash,
		Nonce:          s.seq,
		RoundID:        s.roundID,
		CreatedAt:      time.Now(),
	}
	if err := s.store.CreateBet(bet); err != nil {
		if _, rerr := s.ledger.Apply(userID, stake, "refund:"+betID); rerr != nil {
			logger.Log.Errorf("CRITICAL: failed to refund stake for bet %s: %v", betID, rerr)
		}
		return nil, fmt.Errorf("record bet: %w", err)
	}

	s.bets[userID] = &roundBet{betID: betID, userID: userID, pick: pick, stake: stake}

	return &BetAck{
		RoundID: s.roundID,
		BetID:   betID,
		Pick:    pick,
		Stake:   stake,
		Balance: balance,
	}, nil
}

// openRoundLocked starts a fresh round: new ID, empty bet book, betting
// deadline from now. Caller holds s.mu.
func (s *Scheduler) openRoundLocked() {
	s.seq++
	s.roundID = uuid.New().String()
	s.commit = s.fair.Commit()
	s.seedHash = s.commit.Hash()
	s.bets = make(map[int64]*roundBet)
	s.deadline = s.clock.Now().Add(s.bettingFor)
	s.lastTick = -1

	s.announce(network.MsgTypeRoundInit, map[string]interface{}{
		"game":             s.Game(),
		"round_id":         s.roundID,
		"server_seed_hash": s.seedHash,
		"phase":            "betting",
		"seconds_left":     int(s.bettingFor.Seconds()),
	})
}

// tickLocked broadcasts the countdown on whole-second changes and
// reports whether the phase deadline has passed. Caller holds s.mu.
func (s *Scheduler) tickLocked(phase string) bool {
	now := s.clock.Now()
	secondsLeft := int(s.deadline.Sub(now).Seconds())
	if secondsLeft < 0 {
		secondsLeft = 0
	}
	if secondsLeft != s.lastTick {
		s.lastTick = secondsLeft
		s.announce(network.MsgTypeRoundTimer, map[string]interface{}{
			"round_id":     s.roundID,
			"phase":        phase,
			"seconds_left": secondsLeft,
		})
	}
	return !now.Before(s.deadline)
}

// settleLocked resolves the round against one shared draw and pays every
// winning bet. A failure settling one bet never blocks the others.
// Caller holds s.mu.
func (s *Scheduler) settleLocked() {
	game := s.Game()
	draw := s.commit.Draw(game, s.roundID, s.seq)
	outcome := s.resolver.Resolve(draw)

	rec := &models.RoundRecord{
		ID:             s.roundID,
		Game:           game,
		Outcome:        outcome,
		ServerSeedHash: s.seedHash,
		BetCount:       len(s.bets),
		SettledAt:      time.Now(),
	}

	for _, b := range s.bets {
		rec.TotalStaked += b.stake
		rec.TotalPaid += s.settleBet(b, outcome)
	}

	if err := s.store.SaveRound(rec); err != nil {
		logger.Log.Errorf("Failed to save round %s: %v", s.roundID, err)
	}

	s.history = append(s.history, rec)
	if len(s.history) > historySize {
		s.history = s.history[len(s.history)-historySize:]
	}

	s.announce(network.MsgTypeRoundResult, map[string]interface{}{
		"round_id":         s.roundID,
		"outcome":          outcome,
		"bet_count":        rec.BetCount,
		"total_staked":     rec.TotalStaked,
		"total_paid":       rec.TotalPaid,
		"server_seed_hash": s.seedHash,
	})
}

// settleBet pays and finalizes one bet, returning the payout. Panics are
// contained so one poisoned bet cannot take down the round.
func (s *Scheduler) settleBet(b *roundBet, outcome string) (paid int64) {
	defer func() {
		if r := recover(); r != nil {
			logger.Log.Errorf("Panic settling bet %s in round %s: %v", b.betID, s.roundID, r)
		}
	}()

	mult := s.resolver.PayoutX100(b.pick, outcome)
	payout := b.stake * mult / 100
	won := payout > 0

	balance := int64(0)
	if won {
		var err error
		balance, err = s.ledger.Apply(b.userID, payout, "payout:"+b.betID)
		if err != nil {
			// Leave the bet PENDING for reconciliation; do not guess.
			logger.Log.Errorf("CRITICAL: failed to pay bet %s in round %s: %v", b.betID, s.roundID, err)
			return 0
		}
	} else if bal, err := s.ledger.Balance(b.userID); err == nil {
		balance = bal
	}

	bet := &models.Bet{
		ID:             b.betID,
		UserID:         b.userID,
		Game:           s.Game(),
		Stake:          b.stake,
		Outcome:        outcome,
		Won:            won,
		Payout:         payout,
		MultiplierX100: mult,
		RoundID:        s.roundID,
		SettledAt:      time.Now(),
	}
	if won {
		bet.Status = models.BetWon
	} else {
		bet.Status = models.BetLost
	}
	if err := s.store.FinalizeBet(bet); err != nil {
		logger.Log.Errorf("Failed to finalize bet %s: %v", b.betID, err)
	}

	if s.metrics != nil {
		s.metrics.ObserveSettlement(s.Game(), b.stake, payout, 0)
	}
	if s.feed != nil {
		s.feed.Publish(&broadcast.FeedEvent{
			Game:           s.Game(),
			Stake:          b.stake,
			Won:            won,
			Payout:         payout,
			MultiplierX100: mult,
		})
	}

	if s.broadcaster != nil {
		data, _ := json.Marshal(map[string]interface{}{
			"round_id": s.roundID,
			"bet_id":   b.betID,
			"outcome":  outcome,
			"won":      won,
			"payout":   payout,
			"balance":  balance,
		})
		s.broadcaster.BroadcastToUser(b.userID, network.MsgTypeBetResult, data)
	}

	return payout
}

func (s *Scheduler) announce(msgID uint16, v interface{}) {
	if s.broadcaster == nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	s.broadcaster.BroadcastToGame(s.Game(), msgID, data)
}
