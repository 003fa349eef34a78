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

// Package table holds helpers shared by the readers of delimited input
// tables.
package table

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

// MissingColumnsError is returned when an input table lacks required
// columns or variables.
type MissingColumnsError struct {
	// Source names the input, usually a file path.
	Source string

	// Columns are the missing column names.
	Columns []string
}

func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("%s: missing required columns: %s", e.Source, strings.Join(e.Columns, ", "))
}

// Header maps column names to their positions in a record.
type Header map[string]int

// ReadHeader reads the first record of r as a header. Names are trimmed of
// white space and a leading byte order mark.
func ReadHeader(r *csv.Reader) (Header, error) {
	rec, err := r.Read()
	if err == io.EOF {
		return Header{}, nil
	}
	if err != nil {
		return nil, err
	}
	h := make(Header, len(rec))
	for i, name := range rec {
		if i == 0 {
			name = strings.TrimPrefix(name, "\ufeff")
		}
		h[strings.TrimSpace(name)] = i
	}
	return h, nil
}

// Require returns a *MissingColumnsError listing the columns that are not
// in h, or nil if all are present.
func (h Header) Require(source string, columns ...string) error {
	var missing []string
	for _, c := range columns {
		if _, ok := h[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	sort.Strings(missing)
	return &MissingColumnsError{Source: source, Columns: missing}
}

// Has returns whether column c is present.
func (h Header) Has(c string) bool {
	_, ok := h[c]
	return ok
}

// Get returns the trimmed value of column c in rec, or "" if the column
// does not exist.
func (h Header) Get(rec []string, c string) string {
	i, ok := h[c]
	if !ok || i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

// Float returns the value of column c in rec. Empty and "NaN" values are
// returned as NaN.
func (h Header) Float(rec []string, c string) (float64, error) {
	return ParseFloat(h.Get(rec, c))
}

// ParseFloat parses s, treating empty and not-a-number markers as NaN.
func ParseFloat(s string) (float64, error) {
	switch strings.ToLower(s) {
	case "", "nan", "na", "null", "none":
		return math.NaN(), nil
	}
	return strconv.ParseFloat(s, 64)
}

// timeLayouts are the date and time formats accepted in input tables.
var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006/01/02 15:04:05",
	"2006/01/02 15:04:05.000",
	"2006/01/02",
	"20060102",
}

// ParseTime parses a date or timestamp. Times without a zone are UTC.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

// Day truncates t to the start of its calendar day in UTC.
func Day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
