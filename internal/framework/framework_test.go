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

package framework

import "testing"

func TestParseRenderRoundTrip(t *testing.T) {
	cases := []string{
		".NETFramework,Version=v4.5",
		".NETFramework,Version=v4.6.1",
		".NETStandard,Version=v2.0",
		".NETCoreApp,Version=v3.1",
	}

	for _, s := range cases {
		v := Parse(s)
		if v.Kind == KindUnknown {
			t.Fatalf("Parse(%q) produced KindUnknown", s)
		}
		if got := v.String(); got != s {
			t.Errorf("round trip: Parse(%q).String() = %q", s, got)
		}
	}
}

func TestParseFourPartVersion(t *testing.T) {
	v := Parse(".NETFramework,Version=v4.7.2.1")
	if v.Kind != KindFramework {
		t.Fatalf("Parse(4-part version).Kind = %v, want KindFramework", v.Kind)
	}
	if v.Version != (SimpleVersion{Major: 4, Minor: 7, Patch: 2}) {
		t.Errorf("Parse(4-part version).Version = %+v, want {4 7 2}", v.Version)
	}
}

func TestParseUnknown(t *testing.T) {
	v := Parse("garbage")
	if v.Kind != KindUnknown {
		t.Fatalf("Parse(garbage).Kind = %v, want KindUnknown", v.Kind)
	}
	if v.Version != (SimpleVersion{}) {
		t.Fatalf("Parse(garbage).Version = %+v, want zero", v.Version)
	}
}

func TestLegalUnknownAlwaysLegal(t *testing.T) {
	unknown := Version{Kind: KindUnknown}
	known := Parse(".NETFramework,Version=v4.5")

	for _, pair := range [][2]Version{{unknown, known}, {known, unknown}} {
		legal, err := Legal(pair[0], pair[1])
		if err != nil {
			t.Fatalf("Legal(%v, %v) error: %v", pair[0], pair[1], err)
		}
		if !legal {
			t.Errorf("Legal(%v, %v) = false, want true", pair[0], pair[1])
		}
	}
}

func TestLegalSameKind(t *testing.T) {
	newer := Parse(".NETFramework,Version=v4.6")
	older := Parse(".NETFramework,Version=v4.5")

	legal, err := Legal(newer, older)
	if err != nil || !legal {
		t.Errorf("Legal(newer, older) = %v, %v; want true, nil", legal, err)
	}

	legal, err = Legal(older, newer)
	if err != nil || legal {
		t.Errorf("Legal(older, newer) = %v, %v; want false, nil", legal, err)
	}
}

func TestLegalStandardTable(t *testing.T) {
	core20 := Parse(".NETCoreApp,Version=v2.0")
	core30 := Parse(".NETCoreApp,Version=v3.0")
	fw461 := Parse(".NETFramework,Version=v4.6.1")
	fw451 := Parse(".NETFramework,Version=v4.5.1")
	fw450 := Parse(".NETFramework,Version=v4.5")
	std21 := Parse(".NETStandard,Version=v2.1")
	std20 := Parse(".NETStandard,Version=v2.0")
	std10 := Parse(".NETStandard,Version=v1.0")

	cases := []struct {
		name           string
		source, target Version
		want           bool
	}{
		{"std1.0 from anything", fw450, std10, true},
		{"std2.0 from fw4.6.1+", fw461, std20, true},
		{"std2.0 from fw4.5 fails", fw450, std20, false},
		{"std2.0 from core2.0+", core20, std20, true},
		{"std2.1 from core3.0+", core30, std21, true},
		{"std2.1 from core2.0 fails", core20, std21, false},
		{"std2.1 from framework always illegal", fw451, std21, false},
		{"core to framework coarse-legal", core20, fw450, true},
		{"framework to core illegal", fw450, core20, false},
		{"standard to core illegal", std20, core20, false},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, err := Legal(c.source, c.target)
			if err != nil {
				t.Fatalf("Legal: unexpected error: %v", err)
			}
			if got != c.want {
				t.Errorf("Legal(%s, %s) = %v, want %v", c.source, c.target, got, c.want)
			}
		})
	}
}

func TestLegalUnsupportedStandardVersion(t *testing.T) {
	fw := Parse(".NETFramework,Version=v4.5")
	bogus := Version{Kind: KindStandard, Version: SimpleVersion{Major: 9, Minor: 9}}

	_, err := Legal(fw, bogus)
	if err == nil {
		t.Fatal("expected error for unsupported standard version, got nil")
	}
}
