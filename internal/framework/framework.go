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

// Package framework parses and compares the target-framework identifiers
// carried by managed modules, and implements the cross-framework binding
// legality rules.
package framework

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/crossplane/crossplane-runtime/pkg/errors"
)

// Kind is the family of a target framework.
type Kind int32

// Known framework kinds.
const (
	KindUnknown Kind = iota
	KindFramework
	KindStandard
	KindCoreApp
)

// String implements fmt.Stringer.
func (k Kind) String() string {
	switch k {
	case KindFramework:
		return ".NETFramework"
	case KindStandard:
		return ".NETStandard"
	case KindCoreApp:
		return ".NETCoreApp"
	default:
		return "Unknown"
	}
}

// SimpleVersion is a two-or-more part numeric version used to express a
// framework's version, e.g. 4.6.1 or 2.0.
type SimpleVersion struct {
	Major, Minor, Patch int
}

// String renders a SimpleVersion in dotted form, trimming a trailing zero
// patch component to match common identifier rendering (e.g. "4.5" rather
// than "4.5.0").
func (v SimpleVersion) String() string {
	if v.Patch == 0 {
		return fmt.Sprintf("%d.%d", v.Major, v.Minor)
	}
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// Compare returns -1, 0 or 1 as v is less than, equal to, or greater than o.
func (v SimpleVersion) Compare(o SimpleVersion) int {
	switch {
	case v.Major != o.Major:
		return sign(v.Major - o.Major)
	case v.Minor != o.Minor:
		return sign(v.Minor - o.Minor)
	default:
		return sign(v.Patch - o.Patch)
	}
}

// GreaterOrEqual reports whether v >= o.
func (v SimpleVersion) GreaterOrEqual(o SimpleVersion) bool { return v.Compare(o) >= 0 }

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	default:
		return 0
	}
}

// Version is a parsed target-framework identifier: a kind plus its
// version. The zero value is {KindUnknown, {0,0,0}}.
type Version struct {
	Kind    Kind
	Version SimpleVersion
}

// String renders a Version symmetrically with Parse.
func (v Version) String() string {
	if v.Kind == KindUnknown {
		return ""
	}
	return fmt.Sprintf("%s,Version=v%s", v.Kind, v.Version)
}

var identifierPattern = regexp.MustCompile(`^(\.NETFramework|\.NETStandard|\.NETCoreApp)(?:,Version=v?(\d+)\.(\d+)(?:\.(\d+))?(?:\.(\d+))?)?$`)

// Parse parses a target-framework identifier string of the form
// "(kindToken)(,Version=v(x.y[.z[.w]]))?". On any failure it returns the
// zero Version (Kind Unknown, Version 0.0) rather than an error, matching
// the loose parsing spec.md requires of this model. A fourth version part
// is accepted for grammar compatibility but has no SimpleVersion field of
// its own, so it is parsed (to reject non-numeric garbage) and discarded.
func Parse(id string) Version {
	id = strings.TrimSpace(id)
	m := identifierPattern.FindStringSubmatch(id)
	if m == nil {
		return Version{}
	}

	var kind Kind
	switch m[1] {
	case ".NETFramework":
		kind = KindFramework
	case ".NETStandard":
		kind = KindStandard
	case ".NETCoreApp":
		kind = KindCoreApp
	default:
		return Version{}
	}

	if m[2] == "" {
		return Version{Kind: kind}
	}

	major, err1 := strconv.Atoi(m[2])
	minor, err2 := strconv.Atoi(m[3])
	patch := 0
	if m[4] != "" {
		p, err3 := strconv.Atoi(m[4])
		if err3 != nil {
			return Version{}
		}
		patch = p
	}
	if m[5] != "" {
		if _, err4 := strconv.Atoi(m[5]); err4 != nil {
			return Version{}
		}
	}
	if err1 != nil || err2 != nil {
		return Version{}
	}

	return Version{Kind: kind, Version: SimpleVersion{Major: major, Minor: minor, Patch: patch}}
}

// ErrUnsupportedStandardVersion is returned by Legal when the target is a
// .NETStandard version this model has no rule for.
var ErrUnsupportedStandardVersion = errors.New("unsupported standard version")

// standardRule describes the minimum source version required for a given
// kind to legally bind against a .NETStandard target of some version.
type standardRule struct {
	standard SimpleVersion
	// allowed maps an allowed source Kind to the minimum source version
	// required (KindUnknown as a key means "any source is legal").
	allowed map[Kind]SimpleVersion
}

// standardTable is the verbatim cross-framework-legality table for
// .NETStandard targets from spec.md §4.3.
var standardTable = []standardRule{
	{standard: SimpleVersion{1, 0, 0}, allowed: map[Kind]SimpleVersion{KindUnknown: {}}},
	{standard: SimpleVersion{1, 1, 0}, allowed: map[Kind]SimpleVersion{KindUnknown: {}}},
	{standard: SimpleVersion{1, 2, 0}, allowed: map[Kind]SimpleVersion{
		KindFramework: {4, 5, 1},
		KindCoreApp:   {},
	}},
	{standard: SimpleVersion{1, 3, 0}, allowed: map[Kind]SimpleVersion{
		KindFramework: {4, 6, 0},
		KindCoreApp:   {},
	}},
	{standard: SimpleVersion{1, 4, 0}, allowed: map[Kind]SimpleVersion{
		KindFramework: {4, 6, 1},
		KindCoreApp:   {},
	}},
	{standard: SimpleVersion{1, 5, 0}, allowed: map[Kind]SimpleVersion{
		KindFramework: {4, 6, 1},
		KindCoreApp:   {},
	}},
	{standard: SimpleVersion{1, 6, 0}, allowed: map[Kind]SimpleVersion{
		KindFramework: {4, 6, 1},
		KindCoreApp:   {},
	}},
	{standard: SimpleVersion{2, 0, 0}, allowed: map[Kind]SimpleVersion{
		KindFramework: {4, 6, 1},
		KindCoreApp:   {2, 0, 0},
	}},
	{standard: SimpleVersion{2, 1, 0}, allowed: map[Kind]SimpleVersion{
		KindCoreApp: {3, 0, 0},
	}},
}

func findStandardRule(v SimpleVersion) (standardRule, bool) {
	for _, r := range standardTable {
		if r.standard == v {
			return r, true
		}
	}
	return standardRule{}, false
}

// Legal reports whether a module targeting source may legally reference one
// targeting target, per the cross-framework rules of spec.md §4.3. It
// returns ErrUnsupportedStandardVersion if target is a .NETStandard version
// with no entry in the table.
func Legal(source, target Version) (bool, error) {
	if source.Kind == KindUnknown || target.Kind == KindUnknown {
		return true, nil
	}

	if source.Kind == target.Kind {
		return source.Version.GreaterOrEqual(target.Version), nil
	}

	switch target.Kind {
	case KindStandard:
		rule, ok := findStandardRule(target.Version)
		if !ok {
			return false, ErrUnsupportedStandardVersion
		}
		if _, any := rule.allowed[KindUnknown]; any {
			return true, nil
		}
		min, ok := rule.allowed[source.Kind]
		if !ok {
			return false, nil
		}
		return source.Version.GreaterOrEqual(min), nil
	case KindFramework:
		// Core sourcing a Framework target is a coarse approximation,
		// treated as legal. See DESIGN.md.
		return source.Kind == KindCoreApp, nil
	case KindCoreApp:
		// Framework or Standard sourcing a CoreApp target is illegal.
		return false, nil
	default:
		return true, nil
	}
}
