package recovery

import (
	"fmt"
	"os"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

type condition struct {
	source  string
	program *vm.Program
}

func conditionEnv(name, hostname string, environ []string) map[string]any {
	vars := make(map[string]string, len(environ))
	for _, kv := range environ {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			continue
		}
		vars[key] = value
	}
	return map[string]any{
		"name":     name,
		"hostname": hostname,
		"env":      vars,
	}
}

func compileCondition(source string) (*condition, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return nil, nil
	}
	program, err := expr.Compile(source, expr.Env(conditionEnv("", "", nil)), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("recovery: compile condition %q: %w", source, err)
	}
	return &condition{source: source, program: program}, nil
}

// evaluate runs the condition for the named resource manager in the current process.
func (c *condition) evaluate(name string) (bool, error) {
	if c == nil {
		return true, nil
	}
	hostname, err := os.Hostname()
	if err != nil {
		hostname = ""
	}
	out, err := expr.Run(c.program, conditionEnv(name, hostname, os.Environ()))
	if err != nil {
		return false, fmt.Errorf("recovery: evaluate condition %q: %w", c.source, err)
	}
	ok, isBool := out.(bool)
	if !isBool {
		return false, fmt.Errorf("recovery: condition %q returned %T, want bool", c.source, out)
	}
	return ok, nil
}

// ConditionHolds compiles and evaluates an activation condition for the
// named resource manager. An empty expression always holds.
func ConditionHolds(expression, name string) (bool, error) {
	cond, err := compileCondition(expression)
	if err != nil {
		return false, err
	}
	return cond.evaluate(name)
}
