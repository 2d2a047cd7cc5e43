package games

import (
	"encoding/json"
	"fmt"

	"github.com/winzone/casino-server/fair"
	"github.com/winzone/casino-server/models"
)

// Limbo draws a crash multiplier from the 99/f curve; the bet wins when
// the drawn multiplier reaches the chosen target. Payout is stake x
// target, rounded down. The 99 numerator carries the house edge, so the
// win chance for target T is 99/T percent.
type Limbo struct{}

func NewLimbo() *Limbo { return &Limbo{} }

func (g *Limbo) Name() string { return models.GameLimbo }

type LimboParams struct {
	TargetX100 int64 `json:"target_x100"` // 101 == 1.01x
}

func (g *Limbo) Parse(raw json.RawMessage) (interface{}, error) {
	var p LimboParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}
	if p.TargetX100 < 101 || p.TargetX100 > fair.MaxMultiplierX100 {
		return nil, fmt.Errorf("%w: target %d not in [1.01x, 10000.00x]", ErrInvalidParams, p.TargetX100)
	}
	return &p, nil
}

func (g *Limbo) Play(stake int64, params interface{}, d *fair.Draw) *Outcome {
	return g.settle(stake, params.(*LimboParams), d.MultiplierX100())
}

func (g *Limbo) settle(stake int64, p *LimboParams, drawnX100 int64) *Outcome {
	won := drawnX100 >= p.TargetX100

	out := &Outcome{
		Value: fmt.Sprintf("%d.%02d", drawnX100/100, drawnX100%100),
		Won:   won,
		Detail: map[string]interface{}{
			"multiplier_x100": drawnX100,
			"target_x100":     p.TargetX100,
		},
	}
	if won {
		out.Payout = stake * p.TargetX100 / 100
		out.MultiplierX100 = p.TargetX100
	}
	return out
}
