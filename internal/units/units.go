// Package units provides distance conversion and formatting helpers for
// run summaries. Internally everything is stored in meters.
package units

import "fmt"

// Conversion constants
const (
	MetersPerKilometer = 1e3
	MetersPerMegameter = 1e6
)

// ToKilometers converts a distance in meters to kilometers.
func ToKilometers(meters float64) float64 {
	return meters / MetersPerKilometer
}

// ToMegameters converts a distance in meters to megameters.
func ToMegameters(meters float64) float64 {
	return meters / MetersPerMegameter
}

// Megameters formats a distance in meters as a megameter string for
// human-readable summaries.
func Megameters(meters float64) string {
	return fmt.Sprintf("%.4f Mm", ToMegameters(meters))
}

// Kilometers formats a distance in meters as a kilometer string.
func Kilometers(meters float64) string {
	return fmt.Sprintf("%.2f km", ToKilometers(meters))
}
