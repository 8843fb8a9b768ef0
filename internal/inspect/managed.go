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

	"github.com/lostromb/wayfinder/internal/framework"
	"github.com/lostromb/wayfinder/internal/module"
	"github.com/lostromb/wayfinder/internal/override"
)

const (
	errOpenManaged  = "cannot open candidate managed module"
	errParseManaged = "cannot parse PE headers"
	errNoCLR        = "file has no CLR header"
)

// skippedReferences are framework-provided assemblies the graph never
// needs a node for: every managed binary references mscorlib and System,
// and drawing edges to them would bury the interesting part of the graph
// in bookkeeping, per spec.md §4.3 "Framework reference suppression".
var skippedReferences = map[string]bool{
	"mscorlib": true,
	"system":   true,
}

// ManagedInspector recognizes CLR-hosted (managed) PE binaries and
// extracts their assembly identity, declared framework, and
// AssemblyRef/ImplMap-derived references.
type ManagedInspector struct {
	// Fs is used to read any sidecar .config file for binding overrides.
	// If nil, afero.NewOsFs() is used.
	Fs afero.Fs
}

var _ Inspector = (*ManagedInspector)(nil)

// Inspect implements Inspector.
func (m *ManagedInspector) Inspect(fs afero.Fs, path string) (*module.Data, error) {
	raw, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, errors.Wrap(err, errOpenManaged)
	}

	f, err := pe.NewBytes(raw, &pe.Options{})
	if err != nil {
		return nil, errors.Wrap(ErrNotRecognized, err.Error())
	}
	defer f.Close() //nolint:errcheck // best-effort cleanup of mmap/handle state.

	if err := f.Parse(); err != nil {
		return nil, errors.Wrap(ErrNotRecognized, err.Error())
	}

	if !f.HasCLR {
		return nil, errors.Wrap(ErrNotRecognized, errNoCLR)
	}

	d := &module.Data{
		FilePath: path,
		Kind:     module.KindManaged,
		Platform: platformOf(f),
	}

	assemblyTable := f.CLR.MetadataTables[pe.Assembly]
	if assemblyTable != nil {
		if row, ok := assemblyTable.Content.(pe.AssemblyTableRow); ok {
			d.BinaryName = resolveString(f, row.Name)
			d.FullName = d.BinaryName
			d.Version = module.Version{
				Major:    row.MajorVersion,
				Minor:    row.MinorVersion,
				Build:    row.BuildNumber,
				Revision: row.RevisionNumber,
			}
		}
	}
	if d.BinaryName == "" {
		d.BinaryName = module.Stem(path)
	}

	d.FrameworkID = detectFrameworkID(f)
	d.Framework = framework.Parse(d.FrameworkID)

	d.References = append(d.References, assemblyRefReferences(f)...)
	d.References = append(d.References, implMapReferences(f)...)

	rules, warnings := override.Parse(m.fs(), path)
	for _, w := range warnings {
		d.LoaderError = appendWarning(d.LoaderError, w)
	}
	d.References = override.Apply(d.References, rules)

	return d, nil
}

func (m *ManagedInspector) fs() afero.Fs {
	if m.Fs != nil {
		return m.Fs
	}
	return afero.NewOsFs()
}

func appendWarning(existing, add string) string {
	if existing == "" {
		return add
	}
	return existing + "; " + add
}

// platformOf derives module.Platform from the COR20 flags and the PE file
// header's machine type: an AMD64 machine type (or an I386 machine type
// on a PE32+ image) yields AMD64; otherwise the 32BitRequired/
// 32BitPreferred flags decide between AnyCPU-Prefer32 (both set), X86
// (32BitRequired only) and AnyCPU (neither).
func platformOf(f *pe.File) module.Platform {
	switch f.NtHeader.FileHeader.Machine {
	case pe.ImageFileMachineAMD64:
		return module.PlatformAMD64
	case pe.ImageFileMachineI386:
		if f.Is64 {
			return module.PlatformAMD64
		}
	}

	flags := f.CLR.CLRHeader.Flags
	switch {
	case flags&pe.COMImageFlags32BitRequired != 0 && flags&pe.COMImageFlags32BitPreferred != 0:
		return module.PlatformAnyCPUPrefer32
	case flags&pe.COMImageFlags32BitRequired != 0:
		return module.PlatformX86
	default:
		return module.PlatformAnyCPU
	}
}

// detectFrameworkID reads the metadata header's runtime version string
// (e.g. "v4.0.30319") as a coarse proxy for the binary's target framework,
// per spec.md §9's acknowledged approximation: true TargetFrameworkAttribute
// values require decoding the CustomAttribute table and its blob heap,
// which this inspector does not do.
func detectFrameworkID(f *pe.File) string {
	v := strings.TrimPrefix(f.CLR.MetadataHeader.Version, "v")
	if v == "" {
		return ""
	}
	return ".NETFramework,Version=v" + majorMinor(v)
}

func majorMinor(v string) string {
	parts := strings.SplitN(v, ".", 3)
	if len(parts) < 2 {
		return v
	}
	return parts[0] + "." + parts[1]
}

// assemblyRefReferences decodes the AssemblyRef metadata table into
// ManagedRef references, skipping framework assemblies per
// skippedReferences.
func assemblyRefReferences(f *pe.File) []module.Reference {
	table := f.CLR.MetadataTables[pe.AssemblyRef]
	if table == nil {
		return nil
	}
	rows, ok := table.Content.([]pe.AssemblyRefTableRow)
	if !ok {
		return nil
	}

	out := make([]module.Reference, 0, len(rows))
	for _, row := range rows {
		name := resolveString(f, row.Name)
		if name == "" || skippedReferences[strings.ToLower(name)] {
			continue
		}
		v := module.Version{
			Major:    row.MajorVersion,
			Minor:    row.MinorVersion,
			Build:    row.BuildNumber,
			Revision: row.RevisionNumber,
		}
		out = append(out, module.Reference{
			BinaryName:      name,
			FullName:        name,
			DeclaredVersion: &v,
			Kind:            module.RefManaged,
		})
	}
	return out
}

// implMapReferences decodes the ImplMap table (platform invoke) joined
// against the ModuleRef table it points into, producing PlatformInvoke
// references per spec.md §4.3.
func implMapReferences(f *pe.File) []module.Reference {
	implTable := f.CLR.MetadataTables[pe.ImplMap]
	moduleRefTable := f.CLR.MetadataTables[pe.ModuleRef]
	if implTable == nil || moduleRefTable == nil {
		return nil
	}

	implRows, ok := implTable.Content.([]pe.ImplMapTableRow)
	if !ok {
		return nil
	}
	moduleRefRows, ok := moduleRefTable.Content.([]pe.ModuleRefTableRow)
	if !ok {
		return nil
	}

	seen := map[string]bool{}
	var out []module.Reference
	for _, row := range implRows {
		idx := int(row.ImportScope)
		if idx <= 0 || idx > len(moduleRefRows) {
			continue
		}
		name := resolveString(f, moduleRefRows[idx-1].Name)
		if name == "" || seen[strings.ToLower(name)] {
			continue
		}
		seen[strings.ToLower(name)] = true
		out = append(out, module.Reference{
			BinaryName: name,
			FullName:   name,
			Kind:       module.RefPlatformInvoke,
		})
	}
	return out
}

// resolveString reads a zero-terminated UTF-8 string out of the #Strings
// heap at the given heap offset.
func resolveString(f *pe.File, offset uint32) string {
	heap := f.CLR.MetadataStreams["#Strings"]
	if heap == nil || int(offset) >= len(heap) {
		return ""
	}
	end := int(offset)
	for end < len(heap) && heap[end] != 0 {
		end++
	}
	return string(heap[offset:end])
}
