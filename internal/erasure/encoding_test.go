// Tests for the serialized program format used by the standalone driver.

package erasure

import (
	"context"
	"reflect"
	"strings"
	"testing"
)

const identityProgram = `{
  "format": "1.0.0",
  "symbols": [
    {
      "name": {"name": "Z", "ns": ["Nat"]},
      "defs": [{"kind": "tydecl", "decl": "datacon"}]
    },
    {
      "name": {"name": "id"},
      "defs": [{
        "kind": "caseop",
        "arity": 1,
        "params": [{"name": "x"}],
        "tree": {"kind": "term", "term": {"kind": "ref", "ref": "bound", "name": {"name": "x"}}}
      }]
    },
    {
      "name": {"name": "main", "ns": ["Main"]},
      "defs": [{
        "kind": "caseop",
        "tree": {"kind": "term", "term": {
          "kind": "app",
          "fn": {"kind": "ref", "name": {"name": "id"}},
          "arg": {"kind": "ref", "ref": "datacon", "name": {"name": "Z", "ns": ["Nat"]}}
        }}
      }]
    }
  ],
  "primitives": [
    {"name": {"name": "prim__believe_me"}, "arity": 3}
  ],
  "annotations": [
    {"name": {"name": "id"}, "inaccessible": [2]}
  ]
}`

// Test that a serialized program decodes and analyzes like its in-memory
// counterpart.
func TestDecodeProgramRoundTrip(t *testing.T) {
	ctx, err := DecodeProgram([]byte(identityProgram))
	if err != nil {
		t.Fatalf("DecodeProgram failed: %v", err)
	}

	if len(ctx.Symbols) != 3 {
		t.Fatalf("decoded %d symbols, want 3", len(ctx.Symbols))
	}
	if got := ctx.Annotations[UserName("id")].Inaccessible; !reflect.DeepEqual(got, []int{2}) {
		t.Errorf("annotations = %v, want [2]", got)
	}

	result, err := Analyze(context.Background(), ctx, Options{})
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if !isReachable(result, UserName("id")) || !isReachable(result, UserName("Z", "Nat")) {
		t.Errorf("reachable = %v", result.Reachable)
	}
	if got := result.UsedArgs[UserName("id")]; !reflect.DeepEqual(got, []int{0}) {
		t.Errorf("used args of id = %v, want [0]", got)
	}
}

// Test the format-version gate.
func TestDecodeProgramFormatVersion(t *testing.T) {
	cases := []struct {
		format string
		ok     bool
	}{
		{"1.0.0", true},
		{"1.4.2", true},
		{"2.0.0", false},
		{"0.9.0", false},
		{"garbage", false},
		{"", false},
	}

	for _, tc := range cases {
		data := `{"format": "` + tc.format + `", "symbols": []}`
		_, err := DecodeProgram([]byte(data))
		if tc.ok && err != nil {
			t.Errorf("format %q: unexpected error %v", tc.format, err)
		}
		if !tc.ok && err == nil {
			t.Errorf("format %q: expected an error", tc.format)
		}
	}
}

// Test name decoding across the three sub-kinds.
func TestDecodeNameKinds(t *testing.T) {
	data := `{
      "format": "1.0.0",
      "symbols": [
        {"name": {"name": "eta", "tag": 2}, "defs": [{"kind": "operator", "arity": 0}]},
        {"name": {"instance": {"name": "Show", "ns": ["Prelude"]}}, "defs": [{"kind": "tydecl"}]}
      ]
    }`

	ctx, err := DecodeProgram([]byte(data))
	if err != nil {
		t.Fatalf("DecodeProgram failed: %v", err)
	}
	if _, ok := ctx.Symbols[MachineName(2, "eta")]; !ok {
		t.Error("machine name did not decode")
	}
	if _, ok := ctx.Symbols[InstanceCtorName(UserName("Show", "Prelude"))]; !ok {
		t.Error("instance-constructor name did not decode")
	}
}

// Test that multiple definitions for one name decode and surface as an
// ambiguity when resolved.
func TestDecodeAmbiguousSymbol(t *testing.T) {
	data := `{
      "format": "1.0.0",
      "symbols": [
        {"name": {"name": "dup"}, "defs": [
          {"kind": "operator", "arity": 1},
          {"kind": "tydecl", "decl": "datacon", "arity": 1}
        ]}
      ]
    }`

	ctx, err := DecodeProgram([]byte(data))
	if err != nil {
		t.Fatalf("DecodeProgram failed: %v", err)
	}
	if _, err := ctx.Resolve(UserName("dup")); !IsReferenceError(err) {
		t.Errorf("expected an ambiguous-reference error, got %v", err)
	}
}

// Test rejection of malformed payloads.
func TestDecodeProgramErrors(t *testing.T) {
	cases := []struct {
		name string
		data string
		want string
	}{
		{
			name: "bad term kind",
			data: `{"format": "1.0.0", "symbols": [{"name": {"name": "f"}, "defs": [{"kind": "function", "body": {"kind": "mystery"}}]}]}`,
			want: "unknown term kind",
		},
		{
			name: "bad definition kind",
			data: `{"format": "1.0.0", "symbols": [{"name": {"name": "f"}, "defs": [{"kind": "mystery"}]}]}`,
			want: "unknown definition kind",
		},
		{
			name: "caseop without tree",
			data: `{"format": "1.0.0", "symbols": [{"name": {"name": "f"}, "defs": [{"kind": "caseop"}]}]}`,
			want: "missing case tree",
		},
		{
			name: "empty name",
			data: `{"format": "1.0.0", "symbols": [{"name": {}, "defs": [{"kind": "operator"}]}]}`,
			want: "empty name",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecodeProgram([]byte(tc.data))
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}
