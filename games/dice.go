package games

import (
	"encoding/json"
	"fmt"

	"github.com/winzone/casino-server/fair"
	"github.com/winzone/casino-server/models"
)

// Dice rolls 0.00-99.99. An "over" bet on target T wins on any roll
// strictly above T.00 (win chance 100-T percent); an "under" bet wins
// strictly below T.00 (win chance T percent). Payout is stake x 99 /
// winChance, rounded down: the 99 numerator is the house edge.
type Dice struct{}

func NewDice() *Dice { return &Dice{} }

func (g *Dice) Name() string { return models.GameDice }

type DiceParams struct {
	Target int  `json:"target"` // whole percent, 2..98
	Over   bool `json:"over"`
}

func (g *Dice) Parse(raw json.RawMessage) (interface{}, error) {
	var p DiceParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}
	if p.Target < 2 || p.Target > 98 {
		return nil, fmt.Errorf("%w: target %d not in [2, 98]", ErrInvalidParams, p.Target)
	}
	return &p, nil
}

func (g *Dice) Play(stake int64, params interface{}, d *fair.Draw) *Outcome {
	return g.settle(stake, params.(*DiceParams), d.Roll())
}

// settle resolves a bet against a roll in hundredths ([0,10000)).
func (g *Dice) settle(stake int64, p *DiceParams, roll int) *Outcome {
	winChance := int64(p.Target)
	if p.Over {
		winChance = int64(100 - p.Target)
	}

	won := false
	if p.Over {
		won = roll > p.Target*100
	} else {
		won = roll < p.Target*100
	}

	out := &Outcome{
		Value: fmt.Sprintf("%d.%02d", roll/100, roll%100),
		Won:   won,
		Detail: map[string]interface{}{
			"roll":   roll,
			"target": p.Target,
			"over":   p.Over,
		},
	}
	if won {
		out.Payout = stake * 9900 / (winChance * 100)
		out.MultiplierX100 = 9900 / winChance
	}
	return out
}
