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
	"strings"

	"github.com/saferwall/pe"
	"github.com/spf13/afero"

	"github.com/crossplane/crossplane-runtime/pkg/errors"

	"github.com/lostromb/wayfinder/internal/module"
)

const (
	errOpenNative = "cannot open candidate native module"
	errHasCLR     = "file has a CLR header and is managed, not native"
)

// NativeInspector recognizes plain PE binaries with no CLR header and
// extracts their import-table dependencies as NativeImport references.
// It is tried after ManagedInspector in the default pipeline (spec.md
// §4.2), so a managed binary never reaches it.
type NativeInspector struct{}

var _ Inspector = (*NativeInspector)(nil)

// Inspect implements Inspector.
func (n *NativeInspector) Inspect(fs afero.Fs, path string) (*module.Data, error) {
	raw, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, errors.Wrap(err, errOpenNative)
	}

	f, err := pe.NewBytes(raw, &pe.Options{})
	if err != nil {
		return nil, errors.Wrap(ErrNotRecognized, err.Error())
	}
	defer f.Close() //nolint:errcheck // best-effort cleanup of mmap/handle state.

	if err := f.Parse(); err != nil {
		return nil, errors.Wrap(ErrNotRecognized, err.Error())
	}

	if f.HasCLR {
		return nil, errors.Wrap(ErrNotRecognized, errHasCLR)
	}

	d := &module.Data{
		FilePath:   path,
		BinaryName: module.Stem(path),
		Kind:       module.KindNative,
		Platform:   nativePlatformOf(f),
	}
	d.FullName = d.BinaryName

	if err := f.ParseImports(); err != nil {
		// Missing or malformed import directory is not fatal: a native
		// binary can legitimately have no imports (e.g. a pure resource
		// DLL). Record it and return what we have.
		d.LoaderError = "cannot parse import table: " + err.Error()
		return d, nil
	}

	names := make([]string, 0, len(f.Imports))
	for _, imp := range f.Imports {
		names = append(names, imp.Name)
	}
	d.References = referencesFromImportNames(names)

	return d, nil
}

// referencesFromImportNames turns the raw import-table DLL names of a
// native binary into deduplicated NativeImport references. Per spec.md
// §4.2, the binary name emitted for each is the lower-cased stem (the
// extension-trimmed name), so "KERNEL32.DLL" and "kernel32.dll" collapse
// to the same reference.
func referencesFromImportNames(names []string) []module.Reference {
	seen := map[string]bool{}
	var refs []module.Reference
	for _, raw := range names {
		name := module.TrimModuleExtension(raw)
		if name == "" {
			continue
		}
		name = strings.ToLower(name)
		if seen[name] {
			continue
		}
		seen[name] = true
		refs = append(refs, module.Reference{
			BinaryName: name,
			FullName:   name,
			Kind:       module.RefNativeImport,
		})
	}
	return refs
}

func nativePlatformOf(f *pe.File) module.Platform {
	switch f.NtHeader.FileHeader.Machine {
	case pe.ImageFileMachineAMD64:
		return module.PlatformAMD64
	case pe.ImageFileMachineI386:
		return module.PlatformX86
	default:
		return module.PlatformUnknown
	}
}
