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

package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/tealeg/xlsx"
)

// Columns are the output column names, in order.
var Columns = []string{
	"grid_id", "date",
	"temperature_c", "precipitation", "wind_speed", "humidity", "solar_radiation", "soil_moisture",
	"latitude", "longitude", "elevation", "slope", "aspect",
	"fire_count", "fire_occurred", "total_fire_size", "fire_cause",
}

// DateFormat is the layout of the date column.
const DateFormat = "2006-01-02"

// formatFloat writes missing values as empty strings.
func formatFloat(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func (r Row) strings() []string {
	return []string{
		strconv.Itoa(r.GridID),
		r.Date.Format(DateFormat),
		formatFloat(r.Temperature),
		formatFloat(r.Precipitation),
		formatFloat(r.WindSpeed),
		formatFloat(r.Humidity),
		formatFloat(r.SolarRadiation),
		formatFloat(r.SoilMoisture),
		formatFloat(r.Latitude),
		formatFloat(r.Longitude),
		formatFloat(r.Elevation),
		formatFloat(r.Slope),
		formatFloat(r.Aspect),
		strconv.Itoa(r.FireCount),
		strconv.Itoa(r.FireOccurred),
		formatFloat(r.TotalFireSize),
		r.FireCause,
	}
}

// WriteCSV writes rows as CSV with a header line.
func WriteCSV(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return fmt.Errorf("dataset: writing CSV: %v", err)
	}
	for _, r := range rows {
		if err := cw.Write(r.strings()); err != nil {
			return fmt.Errorf("dataset: writing CSV: %v", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("dataset: writing CSV: %v", err)
	}
	return nil
}

// SheetName is the name of the worksheet written by WriteXLSX.
const SheetName = "dataset"

// WriteXLSX writes rows to a spreadsheet at path. Missing values are empty
// cells.
func WriteXLSX(path string, rows []Row) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet(SheetName)
	if err != nil {
		return fmt.Errorf("dataset: %v", err)
	}
	header := sheet.AddRow()
	for _, c := range Columns {
		header.AddCell().SetString(c)
	}
	floatCell := func(xr *xlsx.Row, v float64) {
		cell := xr.AddCell()
		if !math.IsNaN(v) {
			cell.SetFloat(v)
		}
	}
	for _, r := range rows {
		xr := sheet.AddRow()
		xr.AddCell().SetInt(r.GridID)
		xr.AddCell().SetString(r.Date.Format(DateFormat))
		for _, v := range []float64{
			r.Temperature, r.Precipitation, r.WindSpeed, r.Humidity, r.SolarRadiation, r.SoilMoisture,
			r.Latitude, r.Longitude, r.Elevation, r.Slope, r.Aspect,
		} {
			floatCell(xr, v)
		}
		xr.AddCell().SetInt(r.FireCount)
		xr.AddCell().SetInt(r.FireOccurred)
		floatCell(xr, r.TotalFireSize)
		xr.AddCell().SetString(r.FireCause)
	}
	if err := f.Save(path); err != nil {
		return fmt.Errorf("dataset: writing %s: %v", path, err)
	}
	return nil
}

// WriteFile writes rows to path as a spreadsheet if its extension is
// .xlsx, and as CSV otherwise.
func WriteFile(path string, rows []Row) error {
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return WriteXLSX(path, rows)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("dataset: %v", err)
	}
	if err := WriteCSV(f, rows); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("dataset: %v", err)
	}
	return nil
}
