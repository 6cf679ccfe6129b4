package schema

import (
	"regexp"
	"strings"

	"go.bytecodealliance.org/wit"
)

// Core wazero modules carry no component-model type section, so the rich
// signatures arrive as WIT text alongside the module bytes. The text is a
// flat list of interface blocks:
//
//	import interface my:mesh/logger {
//	  log: func(msg: string);
//	}
//	export interface my:mesh/api {
//	  echo: func(v: u32) -> u32;
//	}
//
// Function declarations follow WIT syntax: name: func(params) -> result.
// Multi-value results use a parenthesized tuple: -> (u32, string).
var (
	blockPattern = regexp.MustCompile(`(?s)(import|export)\s+interface\s+([a-zA-Z0-9_:/@.\-]+)\s*\{(.*?)\}`)
	funcPattern  = regexp.MustCompile(`([a-zA-Z_][a-zA-Z0-9_-]*)\s*:\s*func\s*\(([^)]*)\)(?:\s*->\s*([^;\n]+))?`)
)

// Parse extracts a Schema from WIT text.
func Parse(witText string) (*Schema, error) {
	s := &Schema{
		Imports: make(map[string]*Interface),
		Exports: make(map[string]*Interface),
	}

	blocks := blockPattern.FindAllStringSubmatch(witText, -1)
	if len(blocks) == 0 {
		return nil, &ParseError{Detail: "no interface blocks found"}
	}

	for _, block := range blocks {
		direction, name, body := block[1], block[2], block[3]
		iface, err := parseInterface(name, body)
		if err != nil {
			return nil, err
		}
		switch direction {
		case "import":
			s.Imports[name] = iface
			s.ImportOrder = append(s.ImportOrder, name)
		case "export":
			s.Exports[name] = iface
			s.ExportOrder = append(s.ExportOrder, name)
		}
	}

	return s, nil
}

func parseInterface(name, body string) (*Interface, error) {
	iface := &Interface{
		Name:  name,
		Funcs: make(map[string]*Func),
	}

	for _, match := range funcPattern.FindAllStringSubmatch(body, -1) {
		fn := &Func{Name: match[1]}

		if params := strings.TrimSpace(match[2]); params != "" {
			for _, p := range splitParams(params) {
				typStr := p
				if idx := strings.Index(p, ":"); idx != -1 {
					typStr = strings.TrimSpace(p[idx+1:])
				}
				t, err := parseType(typStr)
				if err != nil {
					return nil, &ParseError{Detail: name + "#" + fn.Name + " param " + typStr, Cause: err}
				}
				fn.Params = append(fn.Params, t)
			}
		}

		if result := strings.TrimSpace(match[3]); result != "" && result != "()" {
			if strings.HasPrefix(result, "(") && strings.HasSuffix(result, ")") {
				inner := strings.TrimSuffix(strings.TrimPrefix(result, "("), ")")
				for _, part := range splitParams(inner) {
					t, err := parseType(strings.TrimSpace(part))
					if err != nil {
						return nil, &ParseError{Detail: name + "#" + fn.Name + " result " + part, Cause: err}
					}
					fn.Results = append(fn.Results, t)
				}
			} else {
				t, err := parseType(result)
				if err != nil {
					return nil, &ParseError{Detail: name + "#" + fn.Name + " result " + result, Cause: err}
				}
				fn.Results = []wit.Type{t}
			}
		}

		iface.Funcs[fn.Name] = fn
		iface.Order = append(iface.Order, fn.Name)
	}

	if len(iface.Funcs) == 0 {
		return nil, &ParseError{Detail: "interface " + name + " declares no functions"}
	}

	return iface, nil
}

func parseType(s string) (wit.Type, error) {
	return wit.ParseType(strings.TrimSpace(s))
}

// splitParams splits a comma-separated parameter list, respecting nested
// angle brackets and parentheses in composite types.
func splitParams(s string) []string {
	var result []string
	var current strings.Builder
	depth := 0

	for _, ch := range s {
		switch ch {
		case '(', '<':
			depth++
			current.WriteRune(ch)
		case ')', '>':
			depth--
			current.WriteRune(ch)
		case ',':
			if depth == 0 {
				if str := strings.TrimSpace(current.String()); str != "" {
					result = append(result, str)
				}
				current.Reset()
			} else {
				current.WriteRune(ch)
			}
		default:
			current.WriteRune(ch)
		}
	}

	if str := strings.TrimSpace(current.String()); str != "" {
		result = append(result, str)
	}

	return result
}
