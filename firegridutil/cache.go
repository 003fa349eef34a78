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

package firegridutil

import (
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"os"

	"github.com/ctessum/requestcache"
	"github.com/dheemanthrk/ForestFireDatasetGenerator/dataset"
	"github.com/dheemanthrk/ForestFireDatasetGenerator/terrain"
)

func init() {
	// These are the types that will be stored in the cache.
	gob.Register([]dataset.ClimateSummary{})
	gob.Register([]dataset.FireSummary{})
	gob.Register(map[int]terrain.Attributes{})
}

// stageFunc computes the result of one pipeline stage.
type stageFunc func(ctx context.Context) (interface{}, error)

// stageCache holds the results of previous pipeline stages so that they
// are only computed once for a given set of inputs.
type stageCache struct {
	c *requestcache.Cache
}

// memCacheSize is the number of stage results kept in memory.
const memCacheSize = 16

// newStageCache creates a stage cache. If dir is not empty, results are
// also stored in dir and reused by later runs.
func newStageCache(dir string) (*stageCache, error) {
	process := func(ctx context.Context, payload interface{}) (interface{}, error) {
		return payload.(stageFunc)(ctx)
	}
	if dir == "" {
		return &stageCache{c: requestcache.NewCache(process, 1, requestcache.Memory(memCacheSize))}, nil
	}
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return nil, fmt.Errorf("firegrid: creating cache directory: %v", err)
	}
	return &stageCache{
		c: requestcache.NewCache(process, 1, requestcache.Memory(memCacheSize),
			requestcache.Disk(dir, requestcache.MarshalGob, requestcache.UnmarshalGob)),
	}, nil
}

// do returns the cached result for key, running f if there isn't one.
// A result that f returns wrapped in an *uncachedResult is returned
// without being stored.
func (s *stageCache) do(ctx context.Context, key string, f stageFunc) (interface{}, error) {
	r, err := s.c.NewRequest(ctx, f, key).Result()
	var u *uncachedResult
	if errors.As(err, &u) {
		return u.result, nil
	}
	return r, err
}

// uncachedResult carries a usable stage result that must not be stored,
// because running the stage again may give a more complete one. The cache
// only stores results returned without an error.
type uncachedResult struct {
	result interface{}
	reason string
}

func (u *uncachedResult) Error() string {
	return "firegrid: stage result not cached: " + u.reason
}

// hits returns the number of requests answered from a cache and the number
// that had to be computed.
func (s *stageCache) hits() (hits, misses int) {
	r := s.c.Requests()
	misses = r[len(r)-1]
	return r[0] - misses, misses
}

// fileStamp identifies the contents of an input file for cache keys.
type fileStamp struct {
	Path    string
	Size    int64
	ModTime int64
}

// stamp returns the fileStamp for path. An empty path has an empty stamp.
func stamp(path string) (fileStamp, error) {
	if path == "" {
		return fileStamp{}, nil
	}
	fi, err := os.Stat(path)
	if err != nil {
		return fileStamp{}, fmt.Errorf("firegrid: %v", err)
	}
	return fileStamp{Path: path, Size: fi.Size(), ModTime: fi.ModTime().UnixNano()}, nil
}
