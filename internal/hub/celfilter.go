package hub

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/cel-go/cel"

	"github.com/Trust-in-depth/BAYKUS/internal/models"
)

// celFilter wraps a compiled CEL program evaluated per event for one
// subscribed session. When disabled, Eval always returns true.
type celFilter struct {
	prog    cel.Program
	enabled bool
}

// ValidateFilter checks a filter expression without attaching anything.
// Transports use it to reject bad expressions before upgrading a connection.
func ValidateFilter(expr string) error {
	_, err := newCELFilter(expr)
	return err
}

func newCELFilter(expr string) (celFilter, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return celFilter{enabled: false}, nil
	}
	env, err := cel.NewEnv(
		cel.Variable("type", cel.StringType),
		// Parsed event data for field filtering, e.g. json.userId == "u1"
		cel.Variable("json", cel.DynType),
		cel.Variable("ts_ms", cel.IntType),
		cel.Variable("now_ms", cel.IntType),
	)
	if err != nil {
		return celFilter{}, err
	}
	ast, iss := env.Parse(expr)
	if iss != nil && iss.Err() != nil {
		return celFilter{}, iss.Err()
	}
	checked, iss2 := env.Check(ast)
	if iss2 != nil && iss2.Err() != nil {
		return celFilter{}, iss2.Err()
	}
	prog, err := env.Program(checked)
	if err != nil {
		return celFilter{}, err
	}
	return celFilter{prog: prog, enabled: true}, nil
}

// Eval evaluates the expression against an event. Evaluation errors count
// as non-matches so one bad filter cannot break the fan-out.
func (f celFilter) Eval(ev models.Event) bool {
	if !f.enabled {
		return true
	}
	var jsonObj any
	if len(ev.Data) > 0 {
		_ = json.Unmarshal(ev.Data, &jsonObj)
	}
	out, _, err := f.prog.Eval(map[string]any{
		"type":   ev.Type,
		"json":   jsonObj,
		"ts_ms":  ev.Ts,
		"now_ms": time.Now().UnixMilli(),
	})
	if err != nil {
		return false
	}
	b, ok := out.Value().(bool)
	return ok && b
}
