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

package analyzer

import (
	"context"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/crossplane/crossplane-runtime/pkg/errors"
	"github.com/crossplane/crossplane-runtime/pkg/logging"

	"github.com/lostromb/wayfinder/internal/graph"
	"github.com/lostromb/wayfinder/internal/inspect"
	"github.com/lostromb/wayfinder/internal/module"
	"github.com/lostromb/wayfinder/internal/pkgindex"
)

const (
	errWalkDir = "cannot walk module directory"
	// maxParallelInspections bounds the errgroup's fan-out so a directory
	// with thousands of candidate files does not open that many file
	// descriptors at once.
	maxParallelInspections = 16
)

// Builder inspects files and composes the resulting module.Data records
// into a graph.Graph, simulating binding between references and the
// modules discovered on disk.
type Builder struct {
	Fs       afero.Fs
	Cache    *Cache
	PkgIndex *pkgindex.Index // optional; nil disables source-package annotation
	Log      logging.Logger
}

// NewBuilder returns a Builder. If log is nil, a no-op logger is used.
func NewBuilder(fs afero.Fs, pipeline *inspect.Pipeline, pkgIdx *pkgindex.Index, log logging.Logger) *Builder {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Builder{
		Fs:       fs,
		Cache:    NewCache(fs, pipeline),
		PkgIndex: pkgIdx,
		Log:      log,
	}
}

// inspectCachedAnnotated runs the cache and, if a package index is
// configured, unions resolved source packages into the result. Per
// spec.md §4.5 step 3, this happens every call (the union is idempotent),
// not just on first-insert — cheap relative to inspection itself.
func (b *Builder) inspectCachedAnnotated(path string) *module.Data {
	d := b.Cache.InspectCached(path)
	if b.PkgIndex != nil {
		var hash *string
		if d.ContentHash != "" {
			hash = &d.ContentHash
		}
		for _, m := range b.PkgIndex.Resolve(d.BinaryName, hash) {
			d.AddSourcePackage(m.Package)
		}
	}
	return d
}

// BuildFile produces a graph containing one root node for path plus one
// stub child node per declared reference, per spec.md §4.5 "Graph from a
// single file".
func (b *Builder) BuildFile(path string) (*graph.Graph, error) {
	g := graph.New()

	d := b.inspectCachedAnnotated(path)
	root := g.AddModule(d)

	for _, ref := range d.References {
		target := ref.EffectiveOrDeclared()
		stub := &module.Data{
			BinaryName: ref.BinaryName,
			FullName:   ref.FullName,
			Kind:       ref.Kind.TargetKind(),
		}
		if target != nil {
			stub.Version = *target
		}
		child := g.AddStub(stub)
		g.AddEdge(root, child)
		postBindChecks(root, child, target)
	}

	return g, nil
}

// BuildDirectory enumerates module-extension files beneath dir, inspects
// them concurrently, binds every reference against the discovered set,
// and returns the resulting graph, per spec.md §4.5 "Graph from a
// directory".
func (b *Builder) BuildDirectory(ctx context.Context, dir string) (*graph.Graph, error) {
	paths, err := b.walkCandidates(dir)
	if err != nil {
		return nil, err
	}

	results := make([]*module.Data, len(paths))

	eg, _ := errgroup.WithContext(ctx)
	eg.SetLimit(maxParallelInspections)
	for i, p := range paths {
		i, p := i, p
		eg.Go(func() error {
			results[i] = b.inspectCachedAnnotated(p)
			return nil
		})
	}
	// Inspection never returns an error value (failures are captured into
	// LoaderError per spec.md §4.2), so this can only fail on a
	// programmer error in the fan-out itself.
	if err := eg.Wait(); err != nil {
		return nil, errors.Wrap(err, errWalkDir)
	}

	g := graph.New()
	for _, d := range results {
		g.AddModule(d)
	}

	b.bindAll(g)

	return g, nil
}

func (b *Builder) walkCandidates(dir string) ([]string, error) {
	var paths []string
	err := afero.Walk(b.Fs, dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !module.HasModuleExtension(path) {
			return nil
		}
		abs, aerr := filepath.Abs(path)
		if aerr != nil {
			abs = path
		}
		paths = append(paths, abs)
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, errWalkDir)
	}
	return paths, nil
}

// bindAll runs attempt_bind for every reference of every node, per
// spec.md §4.5 steps 3-4. Nodes are iterated, and for each reference the
// full node list (captured before any stub is added) is scanned in order;
// the spec explicitly treats "two live candidates both bind" as a data
// error whose winner is unspecified, so no additional tie-break is
// applied beyond iteration order. bindAll itself runs single-threaded,
// after the concurrent inspection fan-out in BuildDirectory has already
// completed, so no locking is needed around graph mutation here.
func (b *Builder) bindAll(g *graph.Graph) {
	liveNodes := g.Nodes()

	for _, source := range liveNodes {
		for _, ref := range source.Data.References {
			targetVersion := ref.EffectiveOrDeclared()
			targetKind := ref.Kind.TargetKind()

			bound := b.bindOne(g, liveNodes, source, ref.BinaryName, targetKind, targetVersion, ref.CodebaseHint, ref.FullName)

			g.AddEdge(source, bound)
			postBindChecks(source, bound, targetVersion)
		}
	}
}

func (b *Builder) bindOne(g *graph.Graph, liveNodes []*graph.Node, source *graph.Node, name string, kind module.BinaryKind, version *module.Version, codebaseHint, fullName string) *graph.Node {
	for _, candidate := range liveNodes {
		if candidate == source {
			continue
		}
		if attemptBind(b.Log, candidate.Data, name, kind, version, codebaseHint) {
			return candidate
		}
	}

	stubData := &module.Data{
		BinaryName: name,
		FullName:   fullName,
		Kind:       kind,
	}
	if version != nil {
		stubData.Version = *version
	}

	// Key the lookup on the same string AddStub will store
	// (stubData.Version.String(), which is "0.0.0.0" for a version-less
	// reference) so two references to the same unversioned name/kind
	// dedupe onto one stub instead of each creating its own.
	if stub, ok := g.GetStub(name, stubData.Version.String(), kind); ok {
		return stub
	}
	if b.PkgIndex != nil {
		for _, m := range b.PkgIndex.Resolve(name, nil) {
			stubData.AddSourcePackage(m.Package)
		}
	}

	return g.AddStub(stubData)
}
