/*
Copyright 2020 The Crossplane Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package analyzer builds a graph.Graph from a set of files on disk: it
// inspects each file once (memoized across a run), synthesizes stub nodes
// for references that do not resolve to a file on disk, and simulates
// binding between references and the modules they name.
package analyzer

import (
	"path/filepath"
	"sync"

	"github.com/spf13/afero"

	"github.com/lostromb/wayfinder/internal/inspect"
	"github.com/lostromb/wayfinder/internal/module"
)

// Cache memoizes inspection results by absolute file path across a single
// analysis run. The underlying sync.Map already gives us the
// thread-safety and approximate-size-unknown-ahead-of-time enumeration
// this needs; there is no call for a bespoke striped concurrent map here.
type Cache struct {
	pipeline *inspect.Pipeline
	fs       afero.Fs
	entries  sync.Map // absolute path -> *module.Data
}

// NewCache returns a Cache that inspects files on fs with pipeline.
func NewCache(fs afero.Fs, pipeline *inspect.Pipeline) *Cache {
	return &Cache{pipeline: pipeline, fs: fs}
}

// InspectCached returns the module.Data for path, inspecting it only if
// no result is cached for it yet. Concurrent callers racing on the same
// uninspected path may each run Inspect once; the first result stored by
// sync.Map.LoadOrStore is the one every caller observes, and later
// results are discarded (re-inspection is wasted work, not a correctness
// bug).
func (c *Cache) InspectCached(path string) *module.Data {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}

	if v, ok := c.entries.Load(abs); ok {
		return v.(*module.Data) //nolint:forcetypeassert // Cache never stores any other type.
	}

	d := c.pipeline.Inspect(c.fs, path)
	actual, _ := c.entries.LoadOrStore(abs, d)
	return actual.(*module.Data) //nolint:forcetypeassert // Cache never stores any other type.
}

// Len returns the number of distinct paths inspected so far.
func (c *Cache) Len() int {
	n := 0
	c.entries.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
