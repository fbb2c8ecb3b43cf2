package tracking

import (
	"bufio"
	"strings"

	nmea "github.com/adrianmo/go-nmea"
	"github.com/paulmach/orb"
)

// ParseNMEA extracts position fixes from newline separated NMEA sentences in order.
// Only RMC sentences with an active status and GGA sentences with a fix are used;
// malformed lines and other sentence types are skipped, since receivers routinely emit
// partial sentences.
func ParseNMEA(text string) []orb.Point {
	var fixes []orb.Point

	scanner := bufio.NewScanner(strings.NewReader(text))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "$") {
			continue
		}

		sentence, err := nmea.Parse(line)
		if err != nil {
			continue
		}

		switch sentence.DataType() {
		case nmea.TypeRMC:
			m := sentence.(nmea.RMC)
			if m.Validity != nmea.ValidRMC {
				continue
			}
			fixes = append(fixes, orb.Point{m.Longitude, m.Latitude})
		case nmea.TypeGGA:
			m := sentence.(nmea.GGA)
			if m.FixQuality == nmea.Invalid {
				continue
			}
			fixes = append(fixes, orb.Point{m.Longitude, m.Latitude})
		}
	}

	return fixes
}
