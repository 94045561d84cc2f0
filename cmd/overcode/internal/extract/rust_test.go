package extract

import (
	"slices"
	"testing"
)

func TestRustExtract(t *testing.T) {
	files := map[string]string{
		"Cargo.toml": "[package]\nname = \"demo\"\n",
		"src/lib.rs": `//! demo crate
use crate::util::helper;
use std::collections::HashMap;
use serde::Deserialize;
// use crate::ghost;
mod net;
mod inline {
    pub fn f() {}
}
`,
		"src/util.rs":       "pub fn helper() {}\n",
		"src/ghost.rs":      "",
		"src/net/mod.rs":    "use self::client::Conn;\nuse super::util;\n",
		"src/net/client.rs": "pub struct Conn;\n",
		"src/inline.rs":     "",
		"src/braces.rs": `use crate::{
    util,
    net::client::{Conn, self},
};
`,
		"src/mixed.rs":       "use crate::{util, std::fmt};\n",
		"src/grouped.rs":     "use {core::mem, crate::util};\n",
		"src/hostd.rs":       "",
		"src/host.rs":        "use crate::hostd::Daemon;\n",
		"src/a.rs":           "mod b;\n",
		"src/a/b.rs":         "use super::util::helper as h;\n",
		"src/glob.rs":        "pub use crate::net::*;\n",
		"src/missing.rs":     "use crate::nowhere::Thing;\nmod absent;\n",
		"tools/gen/main.rs":  "use crate::cfg;\n",
		"tools/gen/cfg.rs":   "",
		"tools/gen/outer.rs": "use super::super::super::escape;\n",
	}

	tests := []struct {
		file string
		want []string
	}{
		{"src/lib.rs", []string{"src/net/mod.rs", "src/util.rs"}},
		{"src/net/mod.rs", []string{"src/net/client.rs", "src/util.rs"}},
		{"src/braces.rs", []string{"src/net/client.rs", "src/util.rs"}},
		{"src/mixed.rs", []string{"src/util.rs"}},
		{"src/grouped.rs", []string{"src/util.rs"}},
		{"src/host.rs", []string{"src/hostd.rs"}},
		{"src/a.rs", []string{"src/a/b.rs"}},
		{"src/a/b.rs", []string{"src/util.rs"}},
		{"src/glob.rs", []string{"src/net/mod.rs"}},
		{"src/missing.rs", nil},
		{"tools/gen/main.rs", []string{"tools/gen/cfg.rs"}},
		{"tools/gen/outer.rs", nil},
	}

	for _, c := range collectors(t) {
		root := t.TempDir()
		writeFiles(t, root, files)
		e := NewRustExtractor(c.ts)

		for _, tt := range tests {
			t.Run(c.name+"/"+tt.file, func(t *testing.T) {
				got := extractFrom(t, e, root, tt.file)
				if !slices.Equal(got, tt.want) {
					t.Errorf("Extract(%s) = %v, want %v", tt.file, got, tt.want)
				}
			})
		}
	}
}

func TestExpandUseTree(t *testing.T) {
	tests := []struct {
		tree string
		want []string
	}{
		{"crate::a::b", []string{"crate::a::b"}},
		{"crate::a::b as c", []string{"crate::a::b"}},
		{"crate::a::*", []string{"crate::a"}},
		{"crate::a::{b, c::{d as e, self}, f::*}", []string{"crate::a::b", "crate::a::c::d", "crate::a::c", "crate::a::f"}},
		{"::crate::x", []string{"crate::x"}},
		{"crate::{a,\n    b,\n}", []string{"crate::a", "crate::b"}},
		{"crate::{a", nil},
	}
	for _, tt := range tests {
		if got := expandUseTree(tt.tree); !slices.Equal(got, tt.want) {
			t.Errorf("expandUseTree(%q) = %v, want %v", tt.tree, got, tt.want)
		}
	}
}

func TestRustSysrootUse(t *testing.T) {
	tests := []struct {
		use  string
		want bool
	}{
		{"std::collections::HashMap", true},
		{"::core::mem", true},
		{"alloc", true},
		{"crate::hostd::x", false},
		{"crate::std::fmt", false},
		{"stdx::y", false},
	}
	for _, tt := range tests {
		if got := rustSysrootUse(tt.use); got != tt.want {
			t.Errorf("rustSysrootUse(%q) = %v, want %v", tt.use, got, tt.want)
		}
	}
}

func TestCollectRustHeuristic(t *testing.T) {
	src := `pub(crate) use crate::a;
/* use crate::hidden; */
pub mod b;
use crate::{
    c,
    d,
};
fn main() { let x = 1; }
`
	refs := collectRustHeuristic([]byte(src))
	if want := []string{"crate::a", "crate::c", "crate::d"}; !slices.Equal(refs.uses, want) {
		t.Errorf("uses = %v, want %v", refs.uses, want)
	}
	if want := []string{"b"}; !slices.Equal(refs.mods, want) {
		t.Errorf("mods = %v, want %v", refs.mods, want)
	}
}
