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

// Package fire reads historical fire point records.
package fire

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"github.com/dheemanthrk/ForestFireDatasetGenerator/internal/table"
	"github.com/sirupsen/logrus"
)

// MissingColumnsError is returned when a fire table lacks required
// columns.
type MissingColumnsError = table.MissingColumnsError

// Record is one historical fire.
type Record struct {
	Lat, Lon float64

	// Date is the report date, truncated to the day.
	Date time.Time

	// SizeHa is the burned area in hectares; NaN if unknown.
	SizeHa float64

	// Cause is the reported cause, empty if unknown.
	Cause string
}

// Column names of the fire point table.
const (
	ColLatitude  = "LATITUDE"
	ColLongitude = "LONGITUDE"
	ColDate      = "REP_DATE"
	ColSize      = "SIZE_HA"
	ColCause     = "CAUSE"
)

// RequiredColumns are the columns a fire table must have.
var RequiredColumns = []string{ColLatitude, ColLongitude, ColDate, ColSize, ColCause}

// Reader reads fire tables.
type Reader struct {
	// Log receives warnings about skipped rows. If nil, the standard
	// logger is used.
	Log logrus.FieldLogger
}

func (r *Reader) log() logrus.FieldLogger {
	if r == nil || r.Log == nil {
		return logrus.StandardLogger()
	}
	return r.Log
}

// ReadFile reads fire records from the CSV file at path.
func (r *Reader) ReadFile(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("fire: %v", err)
	}
	defer f.Close()
	return r.Read(f, path)
}

// Read reads fire records from a CSV table. Extra columns are ignored.
// Rows without a usable location or date are skipped with a warning,
// since they cannot be placed in any grid cell.
func (r *Reader) Read(in io.Reader, source string) ([]Record, error) {
	cr := csv.NewReader(in)
	cr.ReuseRecord = true
	cr.FieldsPerRecord = -1
	h, err := table.ReadHeader(cr)
	if err != nil {
		return nil, fmt.Errorf("fire: reading %s: %v", source, err)
	}
	if err := h.Require(source, RequiredColumns...); err != nil {
		return nil, err
	}

	var out []Record
	var skipped int
	line := 1
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("fire: reading %s: %v", source, err)
		}
		fr, err := parseRecord(h, rec)
		if err != nil {
			skipped++
			r.log().WithFields(logrus.Fields{
				"source": source,
				"line":   line,
			}).Debugf("fire: skipping record: %v", err)
			continue
		}
		out = append(out, fr)
	}
	if skipped > 0 {
		r.log().WithFields(logrus.Fields{
			"source":  source,
			"skipped": skipped,
			"kept":    len(out),
		}).Warn("fire: skipped records without a usable location or date")
	}
	return out, nil
}

func parseRecord(h table.Header, rec []string) (Record, error) {
	var fr Record
	var err error
	if fr.Lat, err = h.Float(rec, ColLatitude); err != nil {
		return fr, fmt.Errorf("%s: %v", ColLatitude, err)
	}
	if fr.Lon, err = h.Float(rec, ColLongitude); err != nil {
		return fr, fmt.Errorf("%s: %v", ColLongitude, err)
	}
	if math.IsNaN(fr.Lat) || math.IsNaN(fr.Lon) {
		return fr, fmt.Errorf("missing location")
	}
	t, err := table.ParseTime(h.Get(rec, ColDate))
	if err != nil {
		return fr, fmt.Errorf("%s: %v", ColDate, err)
	}
	fr.Date = table.Day(t)
	if fr.SizeHa, err = h.Float(rec, ColSize); err != nil {
		fr.SizeHa = math.NaN()
	}
	fr.Cause = h.Get(rec, ColCause)
	return fr, nil
}
