package games

import (
	"encoding/json"
	"fmt"

	"github.com/winzone/casino-server/fair"
	"github.com/winzone/casino-server/models"
)

// Wheel has 15 fixed segments: seven red, seven black, one green.
// Red and black pay 2x, green pays 14x. The layout is fixed so a drawn
// segment index is verifiable against the published seed.
type Wheel struct{}

func NewWheel() *Wheel { return &Wheel{} }

func (g *Wheel) Name() string { return models.GameWheel }

const (
	ColorRed   = "red"
	ColorBlack = "black"
	ColorGreen = "green"
)

// wheelLayout maps segment index to color. Green sits at index 0; red
// and black alternate around the rest of the wheel.
var wheelLayout = [15]string{
	ColorGreen,
	ColorRed, ColorBlack, ColorRed, ColorBlack, ColorRed, ColorBlack, ColorRed,
	ColorBlack, ColorRed, ColorBlack, ColorRed, ColorBlack, ColorRed, ColorBlack,
}

var wheelMultiplierX100 = map[string]int64{
	ColorRed:   200,
	ColorBlack: 200,
	ColorGreen: 1400,
}

type WheelParams struct {
	Color string `json:"color"`
}

func (g *Wheel) Parse(raw json.RawMessage) (interface{}, error) {
	var p WheelParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}
	if _, ok := wheelMultiplierX100[p.Color]; !ok {
		return nil, fmt.Errorf("%w: unknown color %q", ErrInvalidParams, p.Color)
	}
	return &p, nil
}

func (g *Wheel) Play(stake int64, params interface{}, d *fair.Draw) *Outcome {
	return g.settle(stake, params.(*WheelParams), d.Intn(0, len(wheelLayout)))
}

func (g *Wheel) settle(stake int64, p *WheelParams, segment int) *Outcome {
	color := wheelLayout[segment]
	won := color == p.Color

	out := &Outcome{
		Value: fmt.Sprintf("%d:%s", segment, color),
		Won:   won,
		Detail: map[string]interface{}{
			"segment": segment,
			"color":   color,
			"picked":  p.Color,
		},
	}
	if won {
		mult := wheelMultiplierX100[color]
		out.Payout = stake * mult / 100
		out.MultiplierX100 = mult
	}
	return out
}
