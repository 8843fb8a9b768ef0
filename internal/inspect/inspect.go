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

// Package inspect turns one on-disk binary into a module.Data record: its
// identity, declared references, and platform/framework metadata.
package inspect

import (
	"crypto/md5" //nolint:gosec // content-addressing hash, not a security boundary.
	"encoding/hex"
	"io"

	"github.com/spf13/afero"

	"github.com/crossplane/crossplane-runtime/pkg/errors"

	"github.com/lostromb/wayfinder/internal/module"
)

const errHashFile = "cannot hash inspected file"

// ErrNotRecognized is wrapped into the error an Inspector returns when the
// file is not a binary of the kind it knows how to parse (spec.md §4.2:
// "an inspector that does not recognize the file format returns a
// not-recognized error, distinct from a parse failure on a recognized
// format").
var ErrNotRecognized = errors.New("file is not recognized by this inspector")

// Inspector extracts a module.Data record from one file. Implementations
// must not mutate the file and must be safe for concurrent use across
// distinct paths.
type Inspector interface {
	// Inspect reads path from fs and returns its module.Data, or an error
	// wrapping ErrNotRecognized if the inspector does not handle this file
	// format at all.
	Inspect(fs afero.Fs, path string) (*module.Data, error)
}

// Pipeline tries each Inspector in order and returns the first clean
// result. An inspector that recognizes the file but fails on it stops the
// pipeline. If no inspector produces a result, Pipeline returns a failure
// Data (KindUnknown, with FilePath set, so not a stub) carrying the last
// inspector's error in LoaderError: a file nothing recognizes still gets
// a graph node, with its failure recorded rather than dropped.
type Pipeline struct {
	Inspectors []Inspector
}

// New returns a Pipeline trying inspectors in the given order.
func New(inspectors ...Inspector) *Pipeline {
	return &Pipeline{Inspectors: inspectors}
}

// Inspect runs the pipeline against path.
func (p *Pipeline) Inspect(fs afero.Fs, path string) *module.Data {
	var lastErr error

	for _, ins := range p.Inspectors {
		d, err := ins.Inspect(fs, path)
		if err == nil {
			return p.finalize(fs, path, d)
		}
		lastErr = err
		if !errors.Is(err, ErrNotRecognized) {
			// A recognized-but-broken file: stop here and keep the
			// partial result if the inspector returned one, else fall
			// through to the generic failure node below.
			if d != nil {
				return p.finalize(fs, path, d)
			}
			break
		}
	}

	msg := "no inspector is configured"
	if lastErr != nil {
		msg = lastErr.Error()
	}
	return &module.Data{
		FilePath:    path,
		BinaryName:  module.Stem(path),
		Kind:        module.KindUnknown,
		LoaderError: msg,
	}
}

// finalize applies post-processing common to every inspector result: an
// empty FilePath defaults to the inspected path, an empty BinaryName to
// its stem, and the content hash is computed if the inspector left it
// empty, for Managed and Native results only (matching the §8 invariant
// that only those kinds carry a content hash).
func (p *Pipeline) finalize(fs afero.Fs, path string, d *module.Data) *module.Data {
	if d.FilePath == "" {
		d.FilePath = path
	}
	if d.BinaryName == "" {
		d.BinaryName = module.Stem(d.FilePath)
	}
	if d.ContentHash == "" && (d.Kind == module.KindManaged || d.Kind == module.KindNative) {
		if hash, err := hashFile(fs, d.FilePath); err == nil {
			d.ContentHash = hash
		}
	}
	return d
}

func hashFile(fs afero.Fs, path string) (string, error) {
	f, err := fs.Open(path)
	if err != nil {
		return "", errors.Wrap(err, errHashFile)
	}
	defer f.Close() //nolint:errcheck // read-only handle, nothing to flush.

	h := md5.New() //nolint:gosec // content-addressing hash, not a security boundary.
	if _, err := io.Copy(h, f); err != nil {
		return "", errors.Wrap(err, errHashFile)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
