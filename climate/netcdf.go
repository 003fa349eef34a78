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
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"github.com/ctessum/cdf"
	"github.com/dheemanthrk/ForestFireDatasetGenerator/internal/table"
)

// fieldVariables are the NetCDF variable names of the required climate
// fields.
var fieldVariables = []string{"t2m", "tp", "u10", "v10", "d2m"}

// optionalVariables are read when present.
var optionalVariables = []string{"ssrd", "swvl1"}

// coordinate variable name candidates, in order of preference.
var (
	latNames  = []string{"latitude", "lat"}
	lonNames  = []string{"longitude", "lon"}
	timeNames = []string{"valid_time", "time"}
)

// ReadNetCDFFile reads climate samples from an ERA5-style NetCDF classic
// file with (time, latitude, longitude) variables.
func ReadNetCDFFile(path string) ([]Sample, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("climate: %v", err)
	}
	defer f.Close()
	fi, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("climate: %v", err)
	}
	nc, err := cdf.Open(f)
	if err != nil {
		return nil, fmt.Errorf("climate: opening %s: %v", path, err)
	}
	return ReadNetCDF(nc, fi.Size(), path)
}

// ReadNetCDF reads climate samples from nc. size is the size of the
// underlying file in bytes, which is needed to count records along an
// unlimited time dimension. source names the input in error messages.
func ReadNetCDF(nc *cdf.File, size int64, source string) ([]Sample, error) {
	vars := make(map[string]bool)
	for _, v := range nc.Header.Variables() {
		vars[v] = true
	}
	pick := func(names []string) string {
		for _, n := range names {
			if vars[n] {
				return n
			}
		}
		return ""
	}
	latVar, lonVar, timeVar := pick(latNames), pick(lonNames), pick(timeNames)

	var missing []string
	for _, c := range []struct{ name, v string }{{"latitude", latVar}, {"longitude", lonVar}, {"valid_time", timeVar}} {
		if c.v == "" {
			missing = append(missing, c.name)
		}
	}
	for _, v := range fieldVariables {
		if !vars[v] {
			missing = append(missing, v)
		}
	}
	if len(missing) > 0 {
		return nil, &MissingColumnsError{Source: source, Columns: missing}
	}

	lats, err := readVar(nc, size, latVar)
	if err != nil {
		return nil, fmt.Errorf("climate: %s: %v", source, err)
	}
	lons, err := readVar(nc, size, lonVar)
	if err != nil {
		return nil, fmt.Errorf("climate: %s: %v", source, err)
	}
	times, err := readTimes(nc, size, timeVar)
	if err != nil {
		return nil, fmt.Errorf("climate: %s: %v", source, err)
	}

	wantDims := []string{
		nc.Header.Dimensions(timeVar)[0],
		nc.Header.Dimensions(latVar)[0],
		nc.Header.Dimensions(lonVar)[0],
	}
	n := len(times) * len(lats) * len(lons)
	data := make(map[string][]float64)
	for _, v := range append(append([]string{}, fieldVariables...), optionalVariables...) {
		if !vars[v] {
			continue
		}
		if dims := nc.Header.Dimensions(v); strings.Join(dims, ",") != strings.Join(wantDims, ",") {
			return nil, fmt.Errorf("climate: %s: variable %s has dimensions %v; want %v", source, v, dims, wantDims)
		}
		d, err := readVar(nc, size, v)
		if err != nil {
			return nil, fmt.Errorf("climate: %s: %v", source, err)
		}
		if len(d) != n {
			return nil, fmt.Errorf("climate: %s: variable %s has %d values; want %d", source, v, len(d), n)
		}
		data[v] = d
	}
	value := func(v string, i int) float64 {
		d, ok := data[v]
		if !ok {
			return math.NaN()
		}
		return d[i]
	}

	out := make([]Sample, 0, n)
	i := 0
	for _, t := range times {
		for _, lat := range lats {
			for _, lon := range lons {
				out = append(out, Sample{
					Lat: lat, Lon: lon, Time: t,
					T2m: value("t2m", i), TP: value("tp", i),
					U10: value("u10", i), V10: value("v10", i),
					D2m: value("d2m", i), SSRD: value("ssrd", i), SWVL1: value("swvl1", i),
				})
				i++
			}
		}
	}
	return out, nil
}

// readVar reads all values of variable v as float64, unpacking
// scale_factor and add_offset and replacing fill values with NaN.
func readVar(nc *cdf.File, size int64, v string) ([]float64, error) {
	var data []float64
	if nc.Header.IsRecordVariable(v) {
		lengths := nc.Header.Lengths(v)
		nrec := int(nc.Header.NumRecs(size))
		for rec := 0; rec < nrec; rec++ {
			begin := make([]int, len(lengths))
			end := make([]int, len(lengths))
			begin[0], end[0] = rec, rec
			for i := 1; i < len(lengths); i++ {
				end[i] = lengths[i] - 1
			}
			d, err := readStride(nc.Reader(v, begin, end), v)
			if err != nil {
				return nil, err
			}
			data = append(data, d...)
		}
	} else {
		d, err := readStride(nc.Reader(v, nil, nil), v)
		if err != nil {
			return nil, err
		}
		data = d
	}

	var fills []float64
	for _, a := range []string{"_FillValue", "missing_value"} {
		if f, ok := attrFloat(nc, v, a); ok {
			fills = append(fills, f)
		}
	}
	scale, hasScale := attrFloat(nc, v, "scale_factor")
	offset, hasOffset := attrFloat(nc, v, "add_offset")
	if !hasScale {
		scale = 1
	}
	if !hasOffset {
		offset = 0
	}
	for i, d := range data {
		for _, f := range fills {
			if d == f {
				d = math.NaN()
				break
			}
		}
		data[i] = d*scale + offset
	}
	return data, nil
}

func readStride(r cdf.Reader, v string) ([]float64, error) {
	buf := r.Zero(-1)
	if _, err := r.Read(buf); err != nil {
		return nil, fmt.Errorf("reading variable %s: %v", v, err)
	}
	switch t := buf.(type) {
	case []float64:
		return t, nil
	case []float32:
		o := make([]float64, len(t))
		for i, x := range t {
			o[i] = float64(x)
		}
		return o, nil
	case []int32:
		o := make([]float64, len(t))
		for i, x := range t {
			o[i] = float64(x)
		}
		return o, nil
	case []int16:
		o := make([]float64, len(t))
		for i, x := range t {
			o[i] = float64(x)
		}
		return o, nil
	case []uint8:
		o := make([]float64, len(t))
		for i, x := range t {
			o[i] = float64(x)
		}
		return o, nil
	default:
		return nil, fmt.Errorf("variable %s has unsupported type %T", v, buf)
	}
}

// attrFloat returns the first value of numeric attribute a of variable v.
func attrFloat(nc *cdf.File, v, a string) (float64, bool) {
	switch t := nc.Header.GetAttribute(v, a).(type) {
	case []float64:
		if len(t) > 0 {
			return t[0], true
		}
	case []float32:
		if len(t) > 0 {
			return float64(t[0]), true
		}
	case []int32:
		if len(t) > 0 {
			return float64(t[0]), true
		}
	case []int16:
		if len(t) > 0 {
			return float64(t[0]), true
		}
	case []uint8:
		if len(t) > 0 {
			return float64(t[0]), true
		}
	}
	return 0, false
}

// readTimes reads a CF time coordinate.
func readTimes(nc *cdf.File, size int64, v string) ([]time.Time, error) {
	units, ok := nc.Header.GetAttribute(v, "units").(string)
	if !ok {
		return nil, fmt.Errorf("time variable %s has no units", v)
	}
	step, ref, err := parseTimeUnits(units)
	if err != nil {
		return nil, fmt.Errorf("time variable %s: %v", v, err)
	}
	vals, err := readVar(nc, size, v)
	if err != nil {
		return nil, err
	}
	out := make([]time.Time, len(vals))
	for i, x := range vals {
		out[i] = ref.Add(time.Duration(math.Round(x * float64(step))))
	}
	return out, nil
}

// parseTimeUnits parses CF time units of the form "<unit> since <time>".
func parseTimeUnits(units string) (time.Duration, time.Time, error) {
	parts := strings.SplitN(strings.TrimSpace(units), " since ", 2)
	if len(parts) != 2 {
		return 0, time.Time{}, fmt.Errorf("invalid time units %q", units)
	}
	var step time.Duration
	switch strings.ToLower(strings.TrimSpace(parts[0])) {
	case "seconds", "second", "secs", "s":
		step = time.Second
	case "minutes", "minute", "mins":
		step = time.Minute
	case "hours", "hour", "hrs", "h":
		step = time.Hour
	case "days", "day", "d":
		step = 24 * time.Hour
	default:
		return 0, time.Time{}, fmt.Errorf("unsupported time unit %q", parts[0])
	}
	ref, err := table.ParseTime(strings.TrimSuffix(strings.TrimSpace(parts[1]), " UTC"))
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("time units %q: %v", units, err)
	}
	return step, ref, nil
}
