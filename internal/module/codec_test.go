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

package module

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/lostromb/wayfinder/internal/framework"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	v := Version{Major: 20, Minor: 0, Build: 3613, Revision: 0}

	cases := map[string]*Data{
		"full record": {
			FilePath:    "/pkgs/Mod.dll",
			BinaryName:  "Mod",
			FullName:    "Mod, Version=20.0.3613.0, Culture=neutral, PublicKeyToken=null",
			Version:     v,
			FrameworkID: ".NETFramework,Version=v4.5",
			Framework:   framework.Parse(".NETFramework,Version=v4.5"),
			Platform:    PlatformAnyCPU,
			Kind:        KindManaged,
			ContentHash: "d41d8cd98f00b204e9800998ecf8427e",
			LoaderError: "",
			References: []Reference{
				{
					BinaryName:       "Foundation",
					DeclaredVersion:  &Version{Major: 1, Minor: 8, Build: 5},
					EffectiveVersion: &Version{Major: 1, Minor: 8, Build: 5},
					FullName:         "Foundation, Version=1.8.5.0",
					Kind:             RefManaged,
				},
				{
					BinaryName: "native_audio",
					Kind:       RefPlatformInvoke,
				},
			},
			SourcePackages: []PackageID{
				{Name: "foundation.runtime", Version: "5.3.1"},
			},
		},
		"stub node": {
			BinaryName: "Missing.Thing",
			Kind:       KindUnknown,
		},
		"empty references and packages": {
			FilePath:   "/pkgs/Empty.dll",
			BinaryName: "Empty",
			Kind:       KindManaged,
		},
	}

	for name, d := range cases {
		t.Run(name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := Encode(&buf, d); err != nil {
				t.Fatalf("Encode: %v", err)
			}

			got, err := Decode(&buf)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}

			if diff := cmp.Diff(d, got); diff != "" {
				t.Errorf("round trip mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDecodeEmptyStreamFails(t *testing.T) {
	if _, err := Decode(bytes.NewReader(nil)); err == nil {
		t.Fatal("expected error decoding empty stream, got nil")
	}
}

func TestVersionCompare(t *testing.T) {
	cases := []struct {
		a, b Version
		want int
	}{
		{Version{1, 0, 0, 0}, Version{1, 0, 0, 0}, 0},
		{Version{1, 0, 0, 0}, Version{2, 0, 0, 0}, -1},
		{Version{2, 0, 0, 0}, Version{1, 9, 9, 9}, 1},
		{Version{1, 2, 0, 0}, Version{1, 1, 9, 9}, 1},
		{Version{1, 1, 2, 0}, Version{1, 1, 3, 0}, -1},
		{Version{1, 1, 1, 1}, Version{1, 1, 1, 2}, -1},
	}

	for _, c := range cases {
		if got := c.a.Compare(c.b); got != c.want {
			t.Errorf("%v.Compare(%v) = %d, want %d", c.a, c.b, got, c.want)
		}
	}
}

func TestHasModuleExtension(t *testing.T) {
	cases := map[string]bool{
		"Foo.dll":        true,
		"Foo.DLL":        true,
		"Foo.exe":        true,
		"Foo.txt":        false,
		"path/to/Foo.dll": true,
		"Foo":            false,
	}
	for path, want := range cases {
		if got := HasModuleExtension(path); got != want {
			t.Errorf("HasModuleExtension(%q) = %v, want %v", path, got, want)
		}
	}
}

func TestStem(t *testing.T) {
	cases := map[string]string{
		"/a/b/Foo.dll":  "Foo",
		`C:\a\b\Foo.DLL`: "Foo",
		"Foo.exe":       "Foo",
		"Foo":           "Foo",
	}
	for path, want := range cases {
		if got := Stem(path); got != want {
			t.Errorf("Stem(%q) = %q, want %q", path, got, want)
		}
	}
}
