package schema

import (
	"errors"
	"testing"

	"go.bytecodealliance.org/wit"
)

const kvWIT = `
import interface my:mesh/logger {
  log: func(msg: string);
}
export interface my:mesh/kv {
  get: func(k: string) -> string;
  set: func(k: string, v: string);
}
`

func TestParseInterfaces(t *testing.T) {
	s, err := Parse(kvWIT)
	if err != nil {
		t.Fatal(err)
	}

	if len(s.ImportOrder) != 1 || s.ImportOrder[0] != "my:mesh/logger" {
		t.Errorf("imports = %v", s.ImportOrder)
	}
	if len(s.ExportOrder) != 1 || s.ExportOrder[0] != "my:mesh/kv" {
		t.Errorf("exports = %v", s.ExportOrder)
	}

	logFn, ok := s.ImportFunc("my:mesh/logger", "log")
	if !ok {
		t.Fatal("logger#log not found")
	}
	if len(logFn.Params) != 1 || len(logFn.Results) != 0 {
		t.Errorf("log signature = %d params, %d results", len(logFn.Params), len(logFn.Results))
	}
	if _, ok := logFn.Params[0].(wit.String); !ok {
		t.Errorf("log param = %T", logFn.Params[0])
	}

	getFn, ok := s.ExportFunc("my:mesh/kv", "get")
	if !ok {
		t.Fatal("kv#get not found")
	}
	if len(getFn.Params) != 1 || len(getFn.Results) != 1 {
		t.Errorf("get signature = %d params, %d results", len(getFn.Params), len(getFn.Results))
	}

	setFn, _ := s.ExportFunc("my:mesh/kv", "set")
	if len(setFn.Params) != 2 || len(setFn.Results) != 0 {
		t.Errorf("set signature = %d params, %d results", len(setFn.Params), len(setFn.Results))
	}

	kv, _ := s.Export("my:mesh/kv")
	if len(kv.Order) != 2 || kv.Order[0] != "get" || kv.Order[1] != "set" {
		t.Errorf("declaration order = %v", kv.Order)
	}
}

func TestParseMultiValueResults(t *testing.T) {
	s, err := Parse(`
export interface stats {
  minmax: func(vals: list<u32>) -> (u32, u32);
}
`)
	if err != nil {
		t.Fatal(err)
	}
	fn, ok := s.ExportFunc("stats", "minmax")
	if !ok {
		t.Fatal("stats#minmax not found")
	}
	if len(fn.Results) != 2 {
		t.Errorf("results = %d, want 2", len(fn.Results))
	}
}

func TestParseRejectsEmptyInput(t *testing.T) {
	var pe *ParseError
	if _, err := Parse("not wit at all"); !errors.As(err, &pe) {
		t.Fatalf("err = %v", err)
	}
	if _, err := Parse("import interface empty {\n}\n"); !errors.As(err, &pe) {
		t.Fatalf("empty interface err = %v", err)
	}
}

func u32() wit.Type { return wit.U32{} }
func str() wit.Type { return wit.String{} }

func record(fields ...wit.Field) wit.Type {
	return &wit.TypeDef{Kind: &wit.Record{Fields: fields}}
}

func TestEqualTypeStructural(t *testing.T) {
	for _, tc := range []struct {
		name string
		a, b wit.Type
		want bool
	}{
		{"same primitive", u32(), u32(), true},
		{"different primitive", u32(), str(), false},
		{
			"same record",
			record(wit.Field{Name: "x", Type: u32()}, wit.Field{Name: "y", Type: u32()}),
			record(wit.Field{Name: "x", Type: u32()}, wit.Field{Name: "y", Type: u32()}),
			true,
		},
		{
			"field order matters",
			record(wit.Field{Name: "x", Type: u32()}, wit.Field{Name: "y", Type: u32()}),
			record(wit.Field{Name: "y", Type: u32()}, wit.Field{Name: "x", Type: u32()}),
			false,
		},
		{
			"field name matters",
			record(wit.Field{Name: "x", Type: u32()}),
			record(wit.Field{Name: "z", Type: u32()}),
			false,
		},
		{
			"same list",
			&wit.TypeDef{Kind: &wit.List{Type: u32()}},
			&wit.TypeDef{Kind: &wit.List{Type: u32()}},
			true,
		},
		{
			"nested difference",
			&wit.TypeDef{Kind: &wit.List{Type: u32()}},
			&wit.TypeDef{Kind: &wit.List{Type: str()}},
			false,
		},
		{
			"variant case order matters",
			&wit.TypeDef{Kind: &wit.Variant{Cases: []wit.Case{{Name: "a"}, {Name: "b", Type: u32()}}}},
			&wit.TypeDef{Kind: &wit.Variant{Cases: []wit.Case{{Name: "b", Type: u32()}, {Name: "a"}}}},
			false,
		},
		{
			"result arms",
			&wit.TypeDef{Kind: &wit.Result{OK: str(), Err: u32()}},
			&wit.TypeDef{Kind: &wit.Result{OK: str(), Err: u32()}},
			true,
		},
		{
			"result arm presence",
			&wit.TypeDef{Kind: &wit.Result{OK: str()}},
			&wit.TypeDef{Kind: &wit.Result{OK: str(), Err: u32()}},
			false,
		},
		{
			"enum names in order",
			&wit.TypeDef{Kind: &wit.Enum{Cases: []wit.EnumCase{{Name: "a"}, {Name: "b"}}}},
			&wit.TypeDef{Kind: &wit.Enum{Cases: []wit.EnumCase{{Name: "a"}, {Name: "b"}}}},
			true,
		},
		{"primitive vs typedef", u32(), &wit.TypeDef{Kind: &wit.List{Type: u32()}}, false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if got := EqualType(tc.a, tc.b); got != tc.want {
				t.Errorf("EqualType = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestValidateCompatibility(t *testing.T) {
	imp := &Interface{
		Name:  "kv",
		Funcs: map[string]*Func{"get": {Name: "get", Params: []wit.Type{str()}, Results: []wit.Type{str()}}},
		Order: []string{"get"},
	}
	exact := &Interface{
		Name:  "kv",
		Funcs: map[string]*Func{"get": {Name: "get", Params: []wit.Type{str()}, Results: []wit.Type{str()}}},
		Order: []string{"get"},
	}
	if err := ValidateCompatibility(imp, exact); err != nil {
		t.Errorf("exact match rejected: %v", err)
	}

	missing := &Interface{Name: "kv", Funcs: map[string]*Func{}, Order: nil}
	var mismatch *MismatchError
	if err := ValidateCompatibility(imp, missing); !errors.As(err, &mismatch) {
		t.Errorf("missing func: err = %v", err)
	}

	wrongSig := &Interface{
		Name:  "kv",
		Funcs: map[string]*Func{"get": {Name: "get", Params: []wit.Type{u32()}, Results: []wit.Type{str()}}},
		Order: []string{"get"},
	}
	if err := ValidateCompatibility(imp, wrongSig); !errors.As(err, &mismatch) {
		t.Errorf("wrong signature: err = %v", err)
	}
}

func TestWireSafe(t *testing.T) {
	resource := &wit.TypeDef{Kind: &wit.Own{}}

	if err := WireSafe(u32()); err != nil {
		t.Errorf("u32: %v", err)
	}
	if err := WireSafe(record(wit.Field{Name: "f", Type: str()})); err != nil {
		t.Errorf("record: %v", err)
	}
	if err := WireSafe(resource); !errors.Is(err, ErrResourceInSignature) {
		t.Errorf("own: err = %v", err)
	}

	nested := &wit.TypeDef{Kind: &wit.List{Type: &wit.TypeDef{Kind: &wit.Borrow{}}}}
	if err := WireSafe(nested); !errors.Is(err, ErrResourceInSignature) {
		t.Errorf("nested borrow: err = %v", err)
	}

	fn := &Func{Name: "use", Params: []wit.Type{u32(), resource}}
	if err := WireSafeFunc(fn); !errors.Is(err, ErrResourceInSignature) {
		t.Errorf("func: err = %v", err)
	}
}
