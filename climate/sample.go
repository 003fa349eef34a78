/*
Copyright © 2024 the ForestFireDatasetGenerator authors.
This file is part of ForestFireDatasetGenerator.

ForestFireDatasetGenerator is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

ForestFireDatasetGenerator is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with ForestFireDatasetGenerator.  If not, see <http://www.gnu.org/licenses/>.
*/

// Package climate reads gridded reanalysis climate fields and prepares
// them for allocation to the grid.
package climate

import (
	"math"
	"time"

	"github.com/dheemanthrk/ForestFireDatasetGenerator/internal/table"
)

// MissingColumnsError is returned when a climate input lacks required
// fields.
type MissingColumnsError = table.MissingColumnsError

// Sample holds the climate fields at one location and time. Raw fields
// are in the units of the ERA5 single-level products. Missing values are
// NaN.
type Sample struct {
	Lat, Lon float64
	Time     time.Time

	// T2m is the 2 m air temperature [K].
	T2m float64
	// TP is the total precipitation [m].
	TP float64
	// U10 and V10 are the 10 m wind components [m/s].
	U10, V10 float64
	// D2m is the 2 m dewpoint temperature [K].
	D2m float64
	// SSRD is the surface solar radiation downwards [J/m²].
	SSRD float64
	// SWVL1 is the volumetric soil water in layer 1 [m³/m³].
	SWVL1 float64

	// TempC is T2m in °C.
	TempC float64
	// DewpointC is D2m in °C.
	DewpointC float64
	// WindSpeed is the 10 m wind speed [m/s].
	WindSpeed float64
	// RelHumidity is the 2 m relative humidity [%].
	RelHumidity float64
}

// Derive returns a copy of s with the derived fields calculated from the
// raw fields.
func (s Sample) Derive() Sample {
	s.TempC = KelvinToCelsius(s.T2m)
	s.DewpointC = KelvinToCelsius(s.D2m)
	s.WindSpeed = WindSpeed(s.U10, s.V10)
	s.RelHumidity = RelativeHumidity(s.TempC, s.DewpointC)
	return s
}

// KelvinToCelsius converts a temperature from K to °C.
func KelvinToCelsius(k float64) float64 { return k - 273.15 }

// WindSpeed returns the magnitude of the wind vector (u, v).
func WindSpeed(u, v float64) float64 { return math.Sqrt(u*u + v*v) }

// RelativeHumidity returns relative humidity [%] from air temperature t
// and dewpoint td, both in °C, using the Magnus approximation.
func RelativeHumidity(t, td float64) float64 {
	return 100 * math.Exp(17.625*td/(243.04+td)) / math.Exp(17.625*t/(243.04+t))
}
