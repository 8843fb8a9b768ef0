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

// Package main implements wayfinder-helper, a process-isolated bridge
// invoked by inspect.SubprocessBridge: it inspects one file and writes
// its module.Data to standard output using the §4.4 binary encoding,
// per spec.md §6 and Design Notes §9's subprocess-bridge variant.
package main

import (
	"bufio"
	"fmt"
	"os"

	"github.com/spf13/afero"

	"github.com/lostromb/wayfinder/internal/inspect"
	"github.com/lostromb/wayfinder/internal/module"
)

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintln(os.Stderr, "usage: wayfinder-helper <file>")
		os.Exit(-1)
	}

	path := os.Args[1]
	fs := afero.NewOsFs()

	pipeline := inspect.New(
		&inspect.ManagedInspector{Fs: fs},
		&inspect.NativeInspector{},
	)

	d := pipeline.Inspect(fs, path)

	out := bufio.NewWriter(os.Stdout)
	if err := module.Encode(out, d); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(-1)
	}
	if err := out.Flush(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(-1)
	}
}
