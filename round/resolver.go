package round

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/winzone/casino-server/fair"
	"github.com/winzone/casino-server/games"
	"github.com/winzone/casino-server/models"
)

// Resolver defines one scheduled game: how a pick is validated, how a
// round outcome is drawn, and what a pick pays against an outcome.
// Picks and outcomes travel as canonical strings so they can be stored
// and broadcast as-is.
type Resolver interface {
	Game() string
	ParsePick(raw json.RawMessage) (string, error)
	Resolve(d *fair.Draw) string
	PayoutX100(pick, outcome string) int64
}

// TripleNumber draws three digits; a bet picks a single digit and pays
// stake x (1 + matches): 2x on one match, 3x on two, 4x on all three.
type TripleNumber struct{}

func NewTripleNumber() *TripleNumber { return &TripleNumber{} }

func (r *TripleNumber) Game() string { return models.GameTripleNumber }

type tripleNumberPick struct {
	Number int `json:"number"`
}

func (r *TripleNumber) ParsePick(raw json.RawMessage) (string, error) {
	var p tripleNumberPick
	if err := json.Unmarshal(raw, &p); err != nil {
		return "", fmt.Errorf("%w: %v", games.ErrInvalidParams, err)
	}
	if p.Number < 0 || p.Number > 9 {
		return "", fmt.Errorf("%w: number %d not in [0, 9]", games.ErrInvalidParams, p.Number)
	}
	return strconv.Itoa(p.Number), nil
}

func (r *TripleNumber) Resolve(d *fair.Draw) string {
	return fmt.Sprintf("%d-%d-%d", d.Intn(0, 10), d.Intn(1, 10), d.Intn(2, 10))
}

func (r *TripleNumber) PayoutX100(pick, outcome string) int64 {
	matches := int64(strings.Count(outcome, pick))
	if matches == 0 {
		return 0
	}
	return (1 + matches) * 100
}

// IPLToss is a heads-or-tails call paying 1.98x, the coin-flip edge.
type IPLToss struct{}

func NewIPLToss() *IPLToss { return &IPLToss{} }

func (r *IPLToss) Game() string { return models.GameIPL }

type iplTossPick struct {
	Call string `json:"call"`
}

func (r *IPLToss) ParsePick(raw json.RawMessage) (string, error) {
	var p iplTossPick
	if err := json.Unmarshal(raw, &p); err != nil {
		return "", fmt.Errorf("%w: %v", games.ErrInvalidParams, err)
	}
	if p.Call != games.SideHeads && p.Call != games.SideTails {
		return "", fmt.Errorf("%w: call must be %q or %q", games.ErrInvalidParams, games.SideHeads, games.SideTails)
	}
	return p.Call, nil
}

func (r *IPLToss) Resolve(d *fair.Draw) string {
	if d.Intn(0, 2) == 1 {
		return games.SideTails
	}
	return games.SideHeads
}

func (r *IPLToss) PayoutX100(pick, outcome string) int64 {
	if pick != outcome {
		return 0
	}
	return 198
}
