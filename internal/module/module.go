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

// Package module holds the identity and reference record produced by the
// inspector pipeline for one binary file, and its compact binary
// serialization.
package module

import (
	"fmt"
	"strings"

	"github.com/lostromb/wayfinder/internal/framework"
)

// Extensions lists the runtime's module file extensions, matched
// case-insensitively by the directory walk (spec.md §4.5) and the package
// index walk (spec.md §4.6).
var Extensions = []string{".dll", ".exe"}

// HasModuleExtension reports whether path ends in one of Extensions,
// case-insensitively.
func HasModuleExtension(path string) bool {
	lower := strings.ToLower(path)
	for _, ext := range Extensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// TrimModuleExtension removes a trailing module extension from name,
// case-insensitively, if present.
func TrimModuleExtension(name string) string {
	lower := strings.ToLower(name)
	for _, ext := range Extensions {
		if strings.HasSuffix(lower, ext) {
			return name[:len(name)-len(ext)]
		}
	}
	return name
}

// Stem returns the base name of path with any module extension and
// directory components removed.
func Stem(path string) string {
	base := path
	if idx := strings.LastIndexAny(base, `/\`); idx >= 0 {
		base = base[idx+1:]
	}
	return TrimModuleExtension(base)
}

// BinaryKind is the broad category of a binary module.
type BinaryKind int32

// Kinds of binary modules.
const (
	KindUnknown BinaryKind = iota
	KindManaged
	KindNative
)

// String implements fmt.Stringer.
func (k BinaryKind) String() string {
	switch k {
	case KindManaged:
		return "Managed"
	case KindNative:
		return "Native"
	default:
		return "Unknown"
	}
}

// ReferenceKind is the kind of an outbound reference from a module.
type ReferenceKind int32

// Kinds of references.
const (
	RefUnknown ReferenceKind = iota
	RefManaged
	RefPlatformInvoke
	RefNativeImport
)

// String implements fmt.Stringer.
func (k ReferenceKind) String() string {
	switch k {
	case RefManaged:
		return "ManagedRef"
	case RefPlatformInvoke:
		return "PlatformInvoke"
	case RefNativeImport:
		return "NativeImport"
	default:
		return "Unknown"
	}
}

// TargetKind returns the BinaryKind a reference of this kind must bind
// against: managed references resolve to managed modules, platform-invoke
// and native-import references resolve to native modules.
func (k ReferenceKind) TargetKind() BinaryKind {
	switch k {
	case RefManaged:
		return KindManaged
	case RefPlatformInvoke, RefNativeImport:
		return KindNative
	default:
		return KindUnknown
	}
}

// Platform is the target machine architecture and bitness preference of a
// module.
type Platform int32

// Platforms a module may target.
const (
	PlatformUnknown Platform = iota
	PlatformAnyCPU
	PlatformAnyCPUPrefer32
	PlatformAMD64
	PlatformX86
)

// String implements fmt.Stringer.
func (p Platform) String() string {
	switch p {
	case PlatformAnyCPU:
		return "AnyCPU"
	case PlatformAnyCPUPrefer32:
		return "AnyCPU-Prefer32"
	case PlatformAMD64:
		return "AMD64"
	case PlatformX86:
		return "X86"
	default:
		return "Unknown"
	}
}

// Version is a four-part numeric module version. Missing parts default to
// zero.
type Version struct {
	Major    uint16
	Minor    uint16
	Build    uint16
	Revision uint16
}

// String renders a Version in dotted form.
func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d.%d", v.Major, v.Minor, v.Build, v.Revision)
}

// Compare returns -1, 0 or 1 as v is less than, equal to, or greater than o.
func (v Version) Compare(o Version) int {
	switch {
	case v.Major != o.Major:
		return cmp(v.Major, o.Major)
	case v.Minor != o.Minor:
		return cmp(v.Minor, o.Minor)
	case v.Build != o.Build:
		return cmp(v.Build, o.Build)
	default:
		return cmp(v.Revision, o.Revision)
	}
}

// Less reports whether v is strictly less than o.
func (v Version) Less(o Version) bool { return v.Compare(o) < 0 }

func cmp(a, b uint16) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// Reference is a declared dependency from one module to another.
type Reference struct {
	BinaryName       string
	DeclaredVersion  *Version
	EffectiveVersion *Version
	FullName         string
	CodebaseHint     string
	Kind             ReferenceKind
}

// EffectiveOrDeclared returns the effective version if set, else the
// declared version. Either may be nil.
func (r Reference) EffectiveOrDeclared() *Version {
	if r.EffectiveVersion != nil {
		return r.EffectiveVersion
	}
	return r.DeclaredVersion
}

// PackageID identifies a package in a local package cache by name and
// version. Equality is case-sensitive structural equality.
type PackageID struct {
	Name    string
	Version string
}

// Data is the immutable-after-construction record produced by the
// inspector pipeline for one file.
type Data struct {
	// FilePath is empty for synthesized stub nodes.
	FilePath       string
	BinaryName     string
	FullName       string
	Version        Version
	FrameworkID    string
	Framework      framework.Version
	Platform       Platform
	Kind           BinaryKind
	ContentHash    string
	LoaderError    string
	References     []Reference
	SourcePackages []PackageID
}

// IsStub reports whether d was synthesized in place of an unresolved
// reference rather than produced by inspecting a real file.
func (d *Data) IsStub() bool { return d.FilePath == "" }

// AddSourcePackage unions a package identity into d.SourcePackages,
// deduplicating on (Name, Version).
func (d *Data) AddSourcePackage(id PackageID) {
	for _, have := range d.SourcePackages {
		if have == id {
			return
		}
	}
	d.SourcePackages = append(d.SourcePackages, id)
}
