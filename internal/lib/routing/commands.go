package routing

import (
	"math"

	"github.com/paulmach/orb"

	"github.com/ifsp/robotnav/server/internal/lib/geo"
)

// CommandGenerator converts waypoints into the turn/move program executed by the robot
type CommandGenerator struct {
	turnThreshold float64
}

// NewCommandGenerator creates a generator that only emits turns whose rounded magnitude
// exceeds turnThreshold degrees.
func NewCommandGenerator(turnThreshold float64) *CommandGenerator {
	return &CommandGenerator{turnThreshold: turnThreshold}
}

// Generate returns one move per waypoint segment, each preceded by at most one turn
// taken at the segment's starting waypoint. Fewer than two waypoints produce no commands.
func (g *CommandGenerator) Generate(waypoints orb.LineString) []Command {
	if len(waypoints) < 2 {
		return nil
	}

	commands := make([]Command, 0, 2*len(waypoints)-3)
	for i := 0; i < len(waypoints)-1; i++ {
		if i > 0 {
			if turn, ok := g.turnAt(waypoints[i-1], waypoints[i], waypoints[i+1]); ok {
				commands = append(commands, turn)
			}
		}
		commands = append(commands, Move(RoundMeters(geo.Distance(waypoints[i], waypoints[i+1]))))
	}

	return commands
}

// turnAt computes the turn at b when traveling a -> b -> c
func (g *CommandGenerator) turnAt(a, b, c orb.Point) (Command, bool) {
	turn := geo.SignedTurn(geo.Bearing(a, b), geo.Bearing(b, c))
	degrees := int(math.Round(math.Abs(turn)))
	if float64(degrees) <= g.turnThreshold {
		return Command{}, false
	}

	direction := Left
	if turn > 0 {
		direction = Right
	}
	return Turn(direction, degrees), true
}

// RoundMeters rounds a distance to 0.1 m
func RoundMeters(meters float64) float64 {
	return math.Round(meters*10) / 10
}
