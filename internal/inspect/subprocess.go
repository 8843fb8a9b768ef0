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
	"bytes"
	"os/exec"

	"github.com/spf13/afero"

	"github.com/crossplane/crossplane-runtime/pkg/errors"

	"github.com/lostromb/wayfinder/internal/module"
)

const (
	errRunHelper    = "cannot run subprocess helper"
	errDecodeHelper = "cannot decode subprocess helper output"
)

// SubprocessBridge inspects a file by running an external helper binary
// and decoding its standard output with the §4.4 wire format. It exists
// for the case, described in Design Notes §9, where a faithful inspector
// cannot avoid a reflective loader that must run in its own process; the
// ManagedInspector and NativeInspector in this package read file formats
// directly and have no such requirement, so SubprocessBridge is not part
// of the default pipeline built in cmd/wayfinder.
type SubprocessBridge struct {
	// HelperPath is the path to the wayfinder-helper executable.
	HelperPath string
}

var _ Inspector = (*SubprocessBridge)(nil)

// Inspect implements Inspector by invoking HelperPath with path as its
// sole argument and decoding its stdout.
func (s *SubprocessBridge) Inspect(_ afero.Fs, path string) (*module.Data, error) {
	cmd := exec.Command(s.HelperPath, path) //nolint:gosec // HelperPath is operator-configured, not attacker-controlled input.

	var stdout bytes.Buffer
	cmd.Stdout = &stdout

	if err := cmd.Run(); err != nil {
		return nil, errors.Wrap(err, errRunHelper)
	}

	d, err := module.Decode(&stdout)
	if err != nil {
		return nil, errors.Wrap(err, errDecodeHelper)
	}
	return d, nil
}
