package routing

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/paulmach/orb"
)

// Direction is the side a turn command rotates towards
type Direction string

const (
	Left  Direction = "left"
	Right Direction = "right"
)

// CommandType tags the kind of motion a Command describes
type CommandType string

const (
	TurnCommand CommandType = "turn"
	MoveCommand CommandType = "move"
)

// Command is one step of the motion program sent to the robot: either a turn in place
// by a whole number of degrees or a straight move by a distance in meters.
type Command struct {
	Type      CommandType
	Direction Direction
	Degrees   int
	Distance  float64
}

// Turn creates a turn command
func Turn(direction Direction, degrees int) Command {
	return Command{Type: TurnCommand, Direction: direction, Degrees: degrees}
}

// Move creates a move command
func Move(meters float64) Command {
	return Command{Type: MoveCommand, Distance: meters}
}

// IsTurn reports whether the command is a turn
func (c Command) IsTurn() bool {
	return c.Type == TurnCommand
}

func (c Command) String() string {
	if c.IsTurn() {
		return fmt.Sprintf("turn %s %d", c.Direction, c.Degrees)
	}
	return fmt.Sprintf("move %.1f", c.Distance)
}

type turnJSON struct {
	Type      CommandType `json:"type"`
	Direction Direction   `json:"direction"`
	Degrees   int         `json:"degrees"`
}

type moveJSON struct {
	Type     CommandType `json:"type"`
	Distance float64     `json:"distance"`
}

// MarshalJSON emits only the fields that belong to the command's variant
func (c Command) MarshalJSON() ([]byte, error) {
	switch c.Type {
	case TurnCommand:
		return json.Marshal(turnJSON{Type: c.Type, Direction: c.Direction, Degrees: c.Degrees})
	case MoveCommand:
		return json.Marshal(moveJSON{Type: c.Type, Distance: c.Distance})
	default:
		return nil, fmt.Errorf("unknown command type %q", c.Type)
	}
}

// UnmarshalJSON decodes either command variant
func (c *Command) UnmarshalJSON(data []byte) error {
	var raw struct {
		Type      CommandType `json:"type"`
		Direction Direction   `json:"direction"`
		Degrees   int         `json:"degrees"`
		Distance  float64     `json:"distance"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	switch raw.Type {
	case TurnCommand:
		if raw.Direction != Left && raw.Direction != Right {
			return fmt.Errorf("invalid turn direction %q", raw.Direction)
		}
		*c = Turn(raw.Direction, raw.Degrees)
	case MoveCommand:
		*c = Move(raw.Distance)
	default:
		return fmt.Errorf("unknown command type %q", raw.Type)
	}
	return nil
}

// Directions is a route returned by a directions provider
type Directions struct {
	Geometry        orb.LineString // full resolution, start first, destination last
	DistanceMeters  float64
	DurationSeconds float64
}

// Provider computes pedestrian directions between two points
type Provider interface {
	Directions(ctx context.Context, start, end orb.Point) (*Directions, error)
}
