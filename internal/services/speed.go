package services

import "github.com/ifsp/robotnav/server/internal/config"

// speedFor maps deviation and heading error to a speed tier. The most severe breach wins.
func speedFor(policy config.NavigationConfig, deviation, headingError float64) int {
	switch {
	case deviation > policy.SevereDeviation || headingError > policy.SevereHeading:
		return policy.MinimumSpeed
	case deviation > policy.ModerateDeviation || headingError > policy.ModerateHeading:
		return policy.ReducedSpeed
	default:
		return policy.CruiseSpeed
	}
}

// needsReroute reports whether the robot has strayed far enough to plan a new route
func needsReroute(policy config.NavigationConfig, deviation, headingError float64) bool {
	return deviation > policy.RerouteDeviation || headingError > policy.RerouteHeading
}
