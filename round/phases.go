package round

import (
	"encoding/json"
	"fmt"

	"github.com/winzone/casino-server/games"
	"github.com/winzone/casino-server/network"
	"github.com/winzone/casino-server/state"
)

// betRequest is the payload a client sends during the betting phase.
type betRequest struct {
	Stake int64           `json:"stake"`
	Pick  json.RawMessage `json:"pick"`
}

// bettingPhase accepts bets until the countdown expires.
type bettingPhase struct {
	state.StateBase
	scheduler *Scheduler
}

func (p *bettingPhase) OnUpdate() {
	s := p.scheduler

	s.mu.Lock()
	expired := s.tickLocked("betting")
	if expired {
		s.deadline = s.clock.Now().Add(s.lockedFor)
		s.lastTick = -1
	}
	s.mu.Unlock()

	if expired {
		s.machine.ChangeState(s.locked)
	}
}

func (p *bettingPhase) HandleAction(player state.Player, data []byte) error {
	var req betRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return fmt.Errorf("%w: %v", games.ErrInvalidParams, err)
	}

	ack, err := p.scheduler.PlaceBet(player.GetUserID(), req.Stake, req.Pick)
	if err != nil {
		return err
	}

	if b := p.scheduler.broadcaster; b != nil {
		data, _ := json.Marshal(ack)
		b.BroadcastToUser(player.GetUserID(), network.MsgTypeBetConfirmed, data)
	}
	return nil
}

// lockedPhase is the no-more-bets window between close and reveal.
type lockedPhase struct {
	state.StateBase
	scheduler *Scheduler
}

func (p *lockedPhase) OnUpdate() {
	s := p.scheduler

	s.mu.Lock()
	expired := s.tickLocked("locked")
	s.mu.Unlock()

	if expired {
		s.machine.ChangeState(s.settling)
	}
}

func (p *lockedPhase) HandleAction(player state.Player, data []byte) error {
	return ErrBetsClosed
}

// settlingPhase resolves the round on its first update and immediately
// opens the next one.
type settlingPhase struct {
	state.StateBase
	scheduler *Scheduler
}

func (p *settlingPhase) OnUpdate() {
	s := p.scheduler

	s.mu.Lock()
	s.settleLocked()
	s.openRoundLocked()
	s.mu.Unlock()

	s.machine.ChangeState(s.betting)
}

func (p *settlingPhase) HandleAction(player state.Player, data []byte) error {
	return ErrBetsClosed
}
