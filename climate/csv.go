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

package climate

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/dheemanthrk/ForestFireDatasetGenerator/internal/table"
)

// RequiredColumns are the columns a climate table must have.
var RequiredColumns = []string{"valid_time", "latitude", "longitude", "t2m", "tp", "u10", "v10", "d2m"}

// OptionalColumns are read when present and are NaN otherwise.
var OptionalColumns = []string{"ssrd", "swvl1"}

// ReadCSVFile reads climate samples from the CSV file at path.
func ReadCSVFile(path string) ([]Sample, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("climate: %v", err)
	}
	defer f.Close()
	return ReadCSV(f, path)
}

// ReadCSV reads climate samples from a table with one row per location
// and time. source names the input in error messages. The raw fields are
// returned; derived fields are not calculated.
func ReadCSV(r io.Reader, source string) ([]Sample, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = true
	h, err := table.ReadHeader(cr)
	if err != nil {
		return nil, fmt.Errorf("climate: reading %s: %v", source, err)
	}
	if err := h.Require(source, RequiredColumns...); err != nil {
		return nil, err
	}

	var out []Sample
	line := 1
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("climate: reading %s: %v", source, err)
		}
		s, err := parseRecord(h, rec)
		if err != nil {
			return nil, fmt.Errorf("climate: %s line %d: %v", source, line, err)
		}
		out = append(out, s)
	}
	return out, nil
}

func parseRecord(h table.Header, rec []string) (Sample, error) {
	var s Sample
	var err error
	if s.Time, err = table.ParseTime(h.Get(rec, "valid_time")); err != nil {
		return s, err
	}
	fields := []struct {
		col string
		v   *float64
	}{
		{"latitude", &s.Lat}, {"longitude", &s.Lon},
		{"t2m", &s.T2m}, {"tp", &s.TP}, {"u10", &s.U10}, {"v10", &s.V10}, {"d2m", &s.D2m},
		{"ssrd", &s.SSRD}, {"swvl1", &s.SWVL1},
	}
	for _, f := range fields {
		if !h.Has(f.col) {
			*f.v = math.NaN()
			continue
		}
		if *f.v, err = h.Float(rec, f.col); err != nil {
			return s, fmt.Errorf("column %s: %v", f.col, err)
		}
	}
	if math.IsNaN(s.Lat) || math.IsNaN(s.Lon) {
		return s, fmt.Errorf("missing coordinates")
	}
	return s, nil
}
