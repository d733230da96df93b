package relaysvc

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/cel-go/cel"
)

// maxFilterExpr bounds accepted filter expressions to avoid abuse.
const maxFilterExpr = 2048

// Filter wraps a compiled CEL program evaluated per log entry on the debug
// tail. The zero Filter passes everything.
type Filter struct {
	prog    cel.Program
	enabled bool
}

// NewFilter compiles a CEL expression over one log entry. Available
// variables: sequence, ts_ms, size, text, json (parsed payload), headers
// (entry metadata such as kind and mid), now_ms.
func NewFilter(expr string) (Filter, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return Filter{enabled: false}, nil
	}
	if len(expr) > maxFilterExpr {
		return Filter{}, fmt.Errorf("filter expression too long: %d bytes", len(expr))
	}
	env, err := cel.NewEnv(
		cel.Variable("sequence", cel.IntType),
		cel.Variable("ts_ms", cel.IntType),
		cel.Variable("size", cel.IntType),
		cel.Variable("text", cel.StringType),
		cel.Variable("json", cel.DynType),
		cel.Variable("headers", cel.MapType(cel.StringType, cel.StringType)),
		cel.Variable("now_ms", cel.IntType),
	)
	if err != nil {
		return Filter{}, err
	}
	ast, iss := env.Parse(expr)
	if iss != nil && iss.Err() != nil {
		return Filter{}, iss.Err()
	}
	checked, iss2 := env.Check(ast)
	if iss2 != nil && iss2.Err() != nil {
		return Filter{}, iss2.Err()
	}
	prog, err := env.Program(checked)
	if err != nil {
		return Filter{}, err
	}
	return Filter{prog: prog, enabled: true}, nil
}

// Eval evaluates the expression against one entry. When disabled, returns true.
func (f Filter) Eval(sequence uint64, header []byte, payload []byte) bool {
	if !f.enabled {
		return true
	}
	var ts int64
	if len(header) >= 8 {
		ts = int64(binary.BigEndian.Uint64(header[:8]))
	}
	var jsonObj any
	_ = json.Unmarshal(payload, &jsonObj)
	headers := map[string]string{}
	if len(header) > 8 {
		var hm map[string]string
		if err := json.Unmarshal(header[8:], &hm); err == nil {
			headers = hm
		}
	}
	out, _, err := f.prog.Eval(map[string]any{
		"sequence": int64(sequence),
		"ts_ms":    ts,
		"size":     int64(len(payload)),
		"text":     string(payload),
		"json":     jsonObj,
		"headers":  headers,
		"now_ms":   time.Now().UnixMilli(),
	})
	if err != nil {
		return false
	}
	b, ok := out.Value().(bool)
	return ok && b
}
