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

package pkgindex

import (
	"testing"

	"github.com/spf13/afero"

	"github.com/crossplane/crossplane-runtime/pkg/logging"
)

func TestResolvePackageRoot(t *testing.T) {
	fs := afero.NewMemMapFs()
	const path = "/pkgroot/foundation.runtime/5.3.1/lib/frameworkA/Foundation.JSON.dll"
	if err := afero.WriteFile(fs, path, []byte("pe-bytes"), 0o644); err != nil {
		t.Fatal(err)
	}

	idx, err := Initialize(fs, []string{"/pkgroot"}, logging.NewNopLogger())
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	matches := idx.Resolve("Foundation.JSON", nil)
	if len(matches) != 1 {
		t.Fatalf("got %d matches, want 1", len(matches))
	}
	if matches[0].Package.Name != "foundation.runtime" || matches[0].Package.Version != "5.3.1" {
		t.Errorf("got package %+v, want {foundation.runtime 5.3.1}", matches[0].Package)
	}
}

func TestResolveExtensionInsensitive(t *testing.T) {
	fs := afero.NewMemMapFs()
	const path = "/pkgroot/foo/1.0.0/Foo.dll"
	if err := afero.WriteFile(fs, path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	idx, err := Initialize(fs, []string{"/pkgroot"}, nil)
	if err != nil {
		t.Fatal(err)
	}

	withExt := idx.Resolve("Foo.dll", nil)
	withoutExt := idx.Resolve("Foo", nil)
	if len(withExt) != len(withoutExt) || len(withExt) != 1 {
		t.Fatalf("Resolve with/without extension: %d vs %d, want 1 each", len(withExt), len(withoutExt))
	}
}

func TestResolveIgnoresNonDigitVersionDirs(t *testing.T) {
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "/pkgroot/foo/vNext/Foo.dll", []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	idx, err := Initialize(fs, []string{"/pkgroot"}, nil)
	if err != nil {
		t.Fatal(err)
	}

	if matches := idx.Resolve("Foo", nil); len(matches) != 0 {
		t.Fatalf("expected the non-digit-prefixed version dir to be skipped, got %d matches", len(matches))
	}
}

func TestResolveByHash(t *testing.T) {
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "/pkgroot/foo/1.0.0/Foo.dll", []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}

	idx, err := Initialize(fs, []string{"/pkgroot"}, nil)
	if err != nil {
		t.Fatal(err)
	}

	// md5("hello") = 5d41402abc4b2a76b9719d911017c592
	wantHash := "5d41402abc4b2a76b9719d911017c592"
	if matches := idx.Resolve("Foo", &wantHash); len(matches) != 1 {
		t.Fatalf("expected a hash match, got %d", len(matches))
	}

	wrongHash := "00000000000000000000000000000000"
	if matches := idx.Resolve("Foo", &wrongHash); len(matches) != 0 {
		t.Fatalf("expected no match for the wrong hash, got %d", len(matches))
	}
}

func TestHashCacheRoundTrip(t *testing.T) {
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "/pkgroot/foo/1.0.0/Foo.dll", []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}

	idx, err := Initialize(fs, []string{"/pkgroot"}, nil)
	if err != nil {
		t.Fatal(err)
	}

	wantHash := "5d41402abc4b2a76b9719d911017c592"
	if matches := idx.Resolve("Foo", &wantHash); len(matches) != 1 {
		t.Fatalf("priming hash computation: got %d matches, want 1", len(matches))
	}

	const cachePath = "/pkgroot/.wayfinder-hashcache"
	if err := idx.CommitCache(cachePath); err != nil {
		t.Fatalf("CommitCache: %v", err)
	}

	fresh, err := Initialize(fs, []string{"/pkgroot"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := fresh.LoadCache(cachePath); err != nil {
		t.Fatalf("LoadCache: %v", err)
	}

	fresh.mu.Lock()
	got, ok := fresh.hashes["/pkgroot/foo/1.0.0/Foo.dll"]
	fresh.mu.Unlock()
	if !ok || got != wantHash {
		t.Fatalf("hashes[...] = %q, %v; want %q, true", got, ok, wantHash)
	}
}

func TestLoadCacheMissingFileIsNotAnError(t *testing.T) {
	fs := afero.NewMemMapFs()
	idx, err := Initialize(fs, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := idx.LoadCache("/does/not/exist"); err != nil {
		t.Fatalf("LoadCache on a missing file should be a no-op, got: %v", err)
	}
}

func TestInitializeSkipsMissingRoot(t *testing.T) {
	fs := afero.NewMemMapFs()
	idx, err := Initialize(fs, []string{"/does/not/exist"}, nil)
	if err != nil {
		t.Fatalf("Initialize should swallow a missing root, got error: %v", err)
	}
	if matches := idx.Resolve("anything", nil); len(matches) != 0 {
		t.Fatalf("expected no matches from an empty index, got %d", len(matches))
	}
}
