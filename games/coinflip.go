package games

import (
	"encoding/json"
	"fmt"

	"github.com/winzone/casino-server/fair"
	"github.com/winzone/casino-server/models"
)

// CoinFlip pays 1.98x on the right side (the dice formula at 50% win
// chance).
type CoinFlip struct{}

func NewCoinFlip() *CoinFlip { return &CoinFlip{} }

func (g *CoinFlip) Name() string { return models.GameCoinFlip }

const (
	SideHeads = "heads"
	SideTails = "tails"

	coinFlipMultiplierX100 = 198
)

type CoinFlipParams struct {
	Side string `json:"side"`
}

func (g *CoinFlip) Parse(raw json.RawMessage) (interface{}, error) {
	var p CoinFlipParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}
	if p.Side != SideHeads && p.Side != SideTails {
		return nil, fmt.Errorf("%w: side must be %q or %q", ErrInvalidParams, SideHeads, SideTails)
	}
	return &p, nil
}

func (g *CoinFlip) Play(stake int64, params interface{}, d *fair.Draw) *Outcome {
	flip := SideHeads
	if d.Intn(0, 2) == 1 {
		flip = SideTails
	}
	return g.settle(stake, params.(*CoinFlipParams), flip)
}

func (g *CoinFlip) settle(stake int64, p *CoinFlipParams, flip string) *Outcome {
	won := flip == p.Side

	out := &Outcome{
		Value: flip,
		Won:   won,
		Detail: map[string]interface{}{
			"side":   flip,
			"picked": p.Side,
		},
	}
	if won {
		out.Payout = stake * coinFlipMultiplierX100 / 100
		out.MultiplierX100 = coinFlipMultiplierX100
	}
	return out
}
