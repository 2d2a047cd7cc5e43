package games

import (
	"encoding/json"
	"fmt"

	"github.com/winzone/casino-server/fair"
	"github.com/winzone/casino-server/models"
)

// Slots spins three reels of eight symbols each (0-7, where 7 is the
// seven). Paytable: 7-7-7 pays 100x, any other triple 25x, a pair of
// sevens 2x. Each reel is an independent draw from the float stream.
type Slots struct{}

func NewSlots() *Slots { return &Slots{} }

func (g *Slots) Name() string { return models.GameSlots }

const (
	slotSymbols     = 8
	slotSevenSymbol = 7
)

type SlotsParams struct{}

func (g *Slots) Parse(raw json.RawMessage) (interface{}, error) {
	// Slots carries no choice; an empty or absent payload is valid.
	if len(raw) == 0 {
		return &SlotsParams{}, nil
	}
	var p SlotsParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}
	return &p, nil
}

func (g *Slots) Play(stake int64, params interface{}, d *fair.Draw) *Outcome {
	reels := [3]int{d.Intn(0, slotSymbols), d.Intn(1, slotSymbols), d.Intn(2, slotSymbols)}
	return g.settle(stake, reels)
}

func (g *Slots) settle(stake int64, reels [3]int) *Outcome {
	mult := slotsMultiplierX100(reels)

	out := &Outcome{
		Value: fmt.Sprintf("%d-%d-%d", reels[0], reels[1], reels[2]),
		Won:   mult > 0,
		Detail: map[string]interface{}{
			"reels": reels,
		},
	}
	if mult > 0 {
		out.Payout = stake * mult / 100
		out.MultiplierX100 = mult
	}
	return out
}

func slotsMultiplierX100(reels [3]int) int64 {
	if reels[0] == reels[1] && reels[1] == reels[2] {
		if reels[0] == slotSevenSymbol {
			return 10000
		}
		return 2500
	}

	sevens := 0
	for _, r := range reels {
		if r == slotSevenSymbol {
			sevens++
		}
	}
	if sevens == 2 {
		return 200
	}
	return 0
}
