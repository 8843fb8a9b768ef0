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

package inspect

import (
	"testing"

	"github.com/spf13/afero"

	"github.com/crossplane/crossplane-runtime/pkg/errors"

	"github.com/lostromb/wayfinder/internal/module"
)

type fakeInspector struct {
	data *module.Data
	err  error
}

func (f *fakeInspector) Inspect(_ afero.Fs, _ string) (*module.Data, error) {
	return f.data, f.err
}

func TestPipelineStopsAtFirstCleanResult(t *testing.T) {
	clean := &module.Data{FilePath: "/a/Mod.dll", BinaryName: "Mod", Kind: module.KindManaged}
	p := New(
		&fakeInspector{err: errors.Wrap(ErrNotRecognized, "not a managed module")},
		&fakeInspector{data: clean},
		&fakeInspector{err: errors.New("should never be called")},
	)

	fs := afero.NewMemMapFs()
	got := p.Inspect(fs, "/a/Mod.dll")
	if got != clean {
		t.Fatalf("expected the second inspector's clean result, got %+v", got)
	}
}

func TestPipelineFallsBackToFailureNode(t *testing.T) {
	p := New(
		&fakeInspector{err: errors.Wrap(ErrNotRecognized, "not managed")},
		&fakeInspector{err: errors.Wrap(ErrNotRecognized, "not native")},
	)

	fs := afero.NewMemMapFs()
	got := p.Inspect(fs, "/a/Unknown.bin")

	if got.Kind != module.KindUnknown {
		t.Errorf("Kind = %v, want KindUnknown", got.Kind)
	}
	if got.BinaryName != "Unknown.bin" {
		t.Errorf("BinaryName = %q, want %q", got.BinaryName, "Unknown.bin")
	}
	if got.LoaderError == "" {
		t.Error("expected a non-empty LoaderError")
	}
}

func TestPipelineComputesContentHashWhenEmpty(t *testing.T) {
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "/a/Mod.dll", []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}

	clean := &module.Data{FilePath: "/a/Mod.dll", BinaryName: "Mod", Kind: module.KindManaged}
	p := New(&fakeInspector{data: clean})

	got := p.Inspect(fs, "/a/Mod.dll")

	// md5("hello") = 5d41402abc4b2a76b9719d911017c592
	if got.ContentHash != "5d41402abc4b2a76b9719d911017c592" {
		t.Errorf("ContentHash = %q, want md5(\"hello\")", got.ContentHash)
	}
}

func TestPipelineDoesNotHashUnknownKind(t *testing.T) {
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "/a/Mystery.bin", []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}

	clean := &module.Data{FilePath: "/a/Mystery.bin", BinaryName: "Mystery.bin", Kind: module.KindUnknown}
	p := New(&fakeInspector{data: clean})

	got := p.Inspect(fs, "/a/Mystery.bin")
	if got.ContentHash != "" {
		t.Errorf("ContentHash = %q, want empty for KindUnknown", got.ContentHash)
	}
}

func TestPipelineWithNoInspectorsDoesNotPanic(t *testing.T) {
	p := New()
	fs := afero.NewMemMapFs()

	got := p.Inspect(fs, "/a/Anything.dll")
	if got.LoaderError == "" {
		t.Error("expected a non-empty LoaderError for an empty pipeline")
	}
}

func TestPipelineStopsOnRecognizedFailure(t *testing.T) {
	p := New(
		&fakeInspector{err: errors.New("recognized but corrupt")},
		&fakeInspector{data: &module.Data{BinaryName: "ShouldNotRun"}},
	)

	fs := afero.NewMemMapFs()
	got := p.Inspect(fs, "/a/Corrupt.dll")

	if got.BinaryName == "ShouldNotRun" {
		t.Fatal("pipeline should not have fallen through to the second inspector")
	}
	if got.LoaderError == "" {
		t.Error("expected LoaderError to carry the recognized-but-corrupt message")
	}
}
