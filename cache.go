/*
Copyright (C) 2013-2014 Regents of the University of Minnesota.
This file is part of InMAP.

InMAP is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

InMAP is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with InMAP.  If not, see <http://www.gnu.org/licenses/>.
*/

package orchestra

import (
	"context"
	"runtime"
	"sync"

	"github.com/ctessum/requestcache"
)

// InputCache deduplicates and memoizes the (load text + parse +
// optimize) pipeline behind FromInput, keyed by fileID, the same way
// the teacher's bea.Database.loadExcelFile memoizes spreadsheet loads
// with an in-memory LRU (emissions/slca/bea/matrix.go). NodeProcessor's
// construction clones an initial Calculator per worker; when many
// processors are built against the same small set of input files (a
// common pattern when batching by region or chemistry), this avoids
// re-parsing and re-optimizing the same expression graph from scratch
// for every one of them.
type InputCache struct {
	once  sync.Once
	cache *requestcache.Cache
}

var defaultInputCache InputCache

func (c *InputCache) init() {
	c.once.Do(func() {
		loader := func(ctx context.Context, payload interface{}) (interface{}, error) {
			fileID := payload.(string)
			return FromInput(fileID)
		}
		c.cache = requestcache.NewCache(loader, runtime.GOMAXPROCS(-1), requestcache.Memory(1000))
	})
}

// CalculatorFromCache returns a Calculator parsed from fileID, reusing a
// previously parsed-and-optimized instance when available. Because a
// Calculator carries mutable per-calculation state, callers must Clone
// the result before running Calculate on it concurrently with any other
// use of the same cached entry.
func CalculatorFromCache(fileID string) (*Calculator, error) {
	defaultInputCache.init()
	r := defaultInputCache.cache.NewRequest(context.Background(), fileID, fileID)
	res, err := r.Result()
	if err != nil {
		return nil, err
	}
	return res.(*Calculator), nil
}
