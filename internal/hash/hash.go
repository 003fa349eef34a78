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

// Package hash creates cache keys for pipeline stage results.
package hash

import (
	"encoding/gob"
	"fmt"
	"hash/fnv"
	"math"

	"github.com/davecgh/go-spew/spew"
)

// Hash returns a hash key for the specified object.
func Hash(object interface{}) string {
	if s, ok := object.(fmt.Stringer); ok {
		return s.String()
	}
	h := fnv.New128a()

	e := gob.NewEncoder(h)
	if err := e.Encode(object); err == nil {
		return fmt.Sprintf("%x", h.Sum(nil))
	}
	// gob refuses some values (e.g., nil pointers inside
	// interfaces), so fall back to a deterministic dump.
	h.Reset()
	printer := spew.ConfigState{
		Indent:                  " ",
		SortKeys:                true,
		DisableMethods:          true,
		SpewKeys:                true,
		DisablePointerAddresses: true,
		DisableCapacities:       true,
	}
	printer.Fprintf(h, "%#v", object)
	return fmt.Sprintf("%x", h.Sum(nil))
}

// StageKey returns the cache key for the named pipeline stage run
// with the given parameters. Keys of different stages never collide.
func StageKey(stage string, params ...interface{}) string {
	norm := make([]interface{}, len(params))
	for i, p := range params {
		// NaN != NaN, so give it a stable representation.
		if f, ok := p.(float64); ok && math.IsNaN(f) {
			norm[i] = "NaN"
			continue
		}
		norm[i] = p
	}
	return stage + "_" + Hash(norm)
}
