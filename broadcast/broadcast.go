// broadcast/broadcast.go
package broadcast

import (
	"encoding/json"

	"github.com/winzone/casino-server/network"
	"github.com/winzone/casino-server/session"
)

// Broadcaster is the fanout surface the games and rounds emit through.
type Broadcaster interface {
	BroadcastToAll(msgID uint16, data []byte) error
	BroadcastToGame(game string, msgID uint16, data []byte) error
	BroadcastToUser(userID int64, msgID uint16, data []byte) error
}

// SessionBroadcaster fans out over the live session registry. Delivery is
// best effort; a send error on one session never blocks the rest.
type SessionBroadcaster struct {
	sessionManager *session.Manager
}

func NewSessionBroadcaster(sessionManager *session.Manager) *SessionBroadcaster {
	return &SessionBroadcaster{sessionManager: sessionManager}
}

func (b *SessionBroadcaster) BroadcastToAll(msgID uint16, data []byte) error {
	for _, s := range b.sessionManager.All() {
		if err := s.Send(msgID, data); err != nil {
			continue
		}
	}
	return nil
}

func (b *SessionBroadcaster) BroadcastToGame(game string, msgID uint16, data []byte) error {
	for _, s := range b.sessionManager.GetByGame(game) {
		if err := s.Send(msgID, data); err != nil {
			continue
		}
	}
	return nil
}

func (b *SessionBroadcaster) BroadcastToUser(userID int64, msgID uint16, data []byte) error {
	for _, s := range b.sessionManager.GetByUserID(userID) {
		if err := s.Send(msgID, data); err != nil {
			continue
		}
	}
	return nil
}

// BalanceNotifier adapts the broadcaster to the ledger's push contract.
type BalanceNotifier struct {
	b Broadcaster
}

func NewBalanceNotifier(b Broadcaster) *BalanceNotifier {
	return &BalanceNotifier{b: b}
}

func (n *BalanceNotifier) BalanceChanged(userID int64, balance int64) {
	data, _ := json.Marshal(map[string]int64{"balance": balance})
	n.b.BroadcastToUser(userID, network.MsgTypeUserBalance, data)
}

// FeedEvent is one settled bet as spectators see it.
type FeedEvent struct {
	Game           string `json:"game"`
	UserName       string `json:"user_name"`
	Stake          int64  `json:"stake"`
	Won            bool   `json:"won"`
	Payout         int64  `json:"payout"`
	MultiplierX100 int64  `json:"multiplier_x100"`
}

// Feed re-emits settled bets that are worth watching: big stakes, or wins
// at a big multiplier. Stateless; nothing is persisted.
type Feed struct {
	b             Broadcaster
	minStake      int64
	minMultiplier int64 // hundredths
}

func NewFeed(b Broadcaster, minStake, minMultiplier int64) *Feed {
	return &Feed{b: b, minStake: minStake, minMultiplier: minMultiplier}
}

// Interesting reports whether the event clears a feed threshold.
func (f *Feed) Interesting(e *FeedEvent) bool {
	if e.Stake >= f.minStake {
		return true
	}
	return e.Won && e.MultiplierX100 >= f.minMultiplier
}

// Publish broadcasts the event to every connected client if it is
// interesting, and drops it silently otherwise.
func (f *Feed) Publish(e *FeedEvent) {
	if !f.Interesting(e) {
		return
	}
	data, err := json.Marshal(e)
	if err != nil {
		return
	}
	f.b.BroadcastToAll(network.MsgTypeFeed, data)
}
