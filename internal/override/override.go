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

// Package override parses a binary module's sidecar XML configuration file
// into binding-override rules: version redirects and codebase hints.
package override

import (
	"encoding/xml"
	"strconv"
	"strings"

	"github.com/spf13/afero"

	"github.com/lostromb/wayfinder/internal/module"
)

// Rule is one redirect or codebase hint targeting a binary name and an
// inclusive version range.
type Rule struct {
	TargetName string
	MinVersion module.Version
	MaxVersion module.Version
	NewVersion *module.Version
	Codebase   string
}

// InRange reports whether v falls within [r.MinVersion, r.MaxVersion]
// inclusive.
func (r Rule) InRange(v module.Version) bool {
	return !v.Less(r.MinVersion) && !r.MaxVersion.Less(v)
}

// configXML mirrors the subset of the .NET binding redirect config grammar
// this parser understands.
type configXML struct {
	Runtime struct {
		DependentAssembly []struct {
			AssemblyIdentity struct {
				Name string `xml:"name,attr"`
			} `xml:"assemblyIdentity"`
			BindingRedirect []struct {
				OldVersion string `xml:"oldVersion,attr"`
				NewVersion string `xml:"newVersion,attr"`
			} `xml:"bindingRedirect"`
			CodeBase []struct {
				Version string `xml:"version,attr"`
				Href    string `xml:"href,attr"`
			} `xml:"codeBase"`
		} `xml:"dependentAssembly"`
	} `xml:"runtime"`
}

// Parse opens "binaryPath + .config" on fs, if present, and parses it into
// an ordered list of Rules. It never fails: a missing file yields no rules
// and no warnings, a malformed file or a malformed individual redirect
// yields a warning string and the offending entry is skipped.
func Parse(fs afero.Fs, binaryPath string) ([]Rule, []string) {
	configPath := binaryPath + ".config"

	data, err := afero.ReadFile(fs, configPath)
	if err != nil {
		return nil, nil
	}

	var cfg configXML
	if err := xml.Unmarshal(data, &cfg); err != nil {
		return nil, []string{"cannot parse override config " + configPath + ": " + err.Error()}
	}

	var rules []Rule
	var warnings []string

	for _, dep := range cfg.Runtime.DependentAssembly {
		name := dep.AssemblyIdentity.Name
		if name == "" {
			continue
		}

		for _, br := range dep.BindingRedirect {
			if br.OldVersion == "" || br.NewVersion == "" {
				continue
			}

			minStr, maxStr := br.OldVersion, br.OldVersion
			if idx := strings.IndexByte(br.OldVersion, '-'); idx >= 0 {
				minStr = br.OldVersion[:idx]
				maxStr = br.OldVersion[idx+1:]
			}

			min, err := parseVersion(minStr)
			if err != nil {
				warnings = append(warnings, "cannot parse oldVersion minimum for "+name+": "+err.Error())
				continue
			}
			max, err := parseVersion(maxStr)
			if err != nil {
				warnings = append(warnings, "cannot parse oldVersion maximum for "+name+": "+err.Error())
				continue
			}
			nv, err := parseVersion(br.NewVersion)
			if err != nil {
				warnings = append(warnings, "cannot parse newVersion for "+name+": "+err.Error())
				continue
			}

			rules = append(rules, Rule{
				TargetName: name,
				MinVersion: min,
				MaxVersion: max,
				NewVersion: &nv,
			})
		}

		for _, cb := range dep.CodeBase {
			if cb.Version == "" || cb.Href == "" {
				continue
			}
			v, err := parseVersion(cb.Version)
			if err != nil {
				warnings = append(warnings, "cannot parse codeBase version for "+name+": "+err.Error())
				continue
			}
			rules = append(rules, Rule{
				TargetName: name,
				MinVersion: v,
				MaxVersion: v,
				NewVersion: &v,
				Codebase:   cb.Href,
			})
		}
	}

	return rules, warnings
}

// parseVersion parses a dotted version string of up to four numeric parts,
// defaulting missing parts to zero.
func parseVersion(s string) (module.Version, error) {
	parts := strings.Split(s, ".")
	var out [4]uint16
	for i, p := range parts {
		if i >= 4 {
			break
		}
		n, err := strconv.ParseUint(p, 10, 16)
		if err != nil {
			return module.Version{}, err
		}
		out[i] = uint16(n)
	}
	return module.Version{Major: out[0], Minor: out[1], Build: out[2], Revision: out[3]}, nil
}

// maxApplyPasses bounds the fixpoint loop in Apply. spec.md guarantees
// convergence in at most 5 passes; a 6th pass making a change would
// indicate a malformed or cyclic rule set.
const maxApplyPasses = 5

// Apply rewrites the effective version and codebase hint of each reference
// in refs according to rules, iterating to a fixpoint (spec.md §4.6). Only
// ManagedRef-shaped references carry a version at all; references with no
// declared or effective version are left untouched, as are rules whose
// target name does not match.
func Apply(refs []module.Reference, rules []Rule) []module.Reference {
	out := make([]module.Reference, len(refs))
	copy(out, refs)

	for pass := 0; pass < maxApplyPasses; pass++ {
		changed := false

		for i := range out {
			ref := &out[i]
			effective := ref.EffectiveOrDeclared()
			if effective == nil {
				continue
			}
			if ref.EffectiveVersion == nil {
				v := *effective
				ref.EffectiveVersion = &v
			}

			for _, rule := range rules {
				if !strings.EqualFold(rule.TargetName, ref.BinaryName) {
					continue
				}
				if !rule.InRange(*ref.EffectiveVersion) {
					continue
				}
				if rule.NewVersion != nil && *rule.NewVersion != *ref.EffectiveVersion {
					v := *rule.NewVersion
					ref.EffectiveVersion = &v
					changed = true
				}
				if rule.Codebase != "" && rule.Codebase != ref.CodebaseHint {
					ref.CodebaseHint = rule.Codebase
					changed = true
				}
			}
		}

		if !changed {
			break
		}
	}

	return out
}
