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
	"fmt"
	"path/filepath"
	"strings"

	"github.com/crossplane/crossplane-runtime/pkg/logging"

	"github.com/lostromb/wayfinder/internal/framework"
	"github.com/lostromb/wayfinder/internal/graph"
	"github.com/lostromb/wayfinder/internal/module"
)

// attemptBind reports whether candidate satisfies a reference to name of
// the given kind, version, and codebase hint, per spec.md §4.5.
//
// A major-version mismatch is logged but does not fail the bind — the
// spec records this as a deliberate ambiguity (Open Questions, §9): it is
// unclear whether the upstream loader's leniency here is intentional or a
// disabled guard, and a faithful port keeps the warning-only behavior.
func attemptBind(log logging.Logger, candidate *module.Data, name string, kind module.BinaryKind, version *module.Version, codebaseHint string) bool {
	if !strings.EqualFold(candidate.BinaryName, name) {
		return false
	}
	if candidate.Kind != kind {
		log.Debug("binding candidate kind mismatch", "candidate", candidate.FilePath, "want", kind.String(), "got", candidate.Kind.String())
		return false
	}
	if version != nil && candidate.Version.Major != version.Major {
		log.Info("binding candidate major-version mismatch", "candidate", candidate.BinaryName, "want", version.String(), "got", candidate.Version.String())
	}
	if codebaseHint != "" {
		expected := filepath.Join(filepath.Dir(candidate.FilePath), codebaseHint)
		if expected != candidate.FilePath {
			return false
		}
	}
	return true
}

// postBindChecks appends down-grade and cross-framework violation messages
// to source's error list, per spec.md §4.5 "Post-binding error checks".
func postBindChecks(source *graph.Node, target *graph.Node, requested *module.Version) {
	if target.Data.IsStub() {
		return
	}

	if requested != nil && target.Data.Version.Less(*requested) {
		source.Errors = append(source.Errors, fmt.Sprintf(
			"down-grade: requested v%s but resolved v%s", requested.String(), target.Data.Version.String()))
	}

	sourceFW := source.Data.Framework
	targetFW := target.Data.Framework
	if sourceFW.Kind != framework.KindUnknown && targetFW.Kind != framework.KindUnknown {
		legal, err := framework.Legal(sourceFW, targetFW)
		if err == nil && !legal {
			source.Errors = append(source.Errors, fmt.Sprintf(
				"cross-framework: %s is a higher-level framework", target.Data.BinaryName))
		}
	}
}
