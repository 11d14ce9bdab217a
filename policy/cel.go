package policy

import (
	"fmt"

	"github.com/google/cel-go/cel"

	"github.com/genops-ai/genops-go/models"
)

// celEnv declares the variables a policy expression may reference. The
// environment is immutable and shared by every compilation.
var celEnv = mustNewCELEnv()

func mustNewCELEnv() *cel.Env {
	env, err := cel.NewEnv(
		cel.Variable("cost", cel.DoubleType),
		cel.Variable("input_tokens", cel.IntType),
		cel.Variable("output_tokens", cel.IntType),
		cel.Variable("total_tokens", cel.IntType),
		cel.Variable("model", cel.StringType),
		cel.Variable("provider", cel.StringType),
	)
	if err != nil {
		panic(fmt.Sprintf("failed to create CEL environment: %v", err))
	}
	return env
}

// compileExpression compiles a condition expression at registration time.
// The expression must evaluate to a bool; true means the condition fired.
func compileExpression(expr string) (cel.Program, error) {
	ast, iss := celEnv.Compile(expr)
	if iss != nil && iss.Err() != nil {
		return nil, fmt.Errorf("failed to compile expression %q: %w", expr, iss.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("expression %q must evaluate to bool, got %s", expr, ast.OutputType())
	}
	prog, err := celEnv.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to build program for %q: %w", expr, err)
	}
	return prog, nil
}

// evalExpression runs a compiled condition against the evaluation context.
func evalExpression(prog cel.Program, pctx models.PolicyContext) (bool, error) {
	out, _, err := prog.Eval(map[string]any{
		"cost":          pctx.CostUSD,
		"input_tokens":  pctx.InputTokens,
		"output_tokens": pctx.OutputTokens,
		"total_tokens":  pctx.TotalTokens(),
		"model":         pctx.Model,
		"provider":      pctx.Provider,
	})
	if err != nil {
		return false, fmt.Errorf("failed to evaluate expression: %w", err)
	}
	fired, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("expression returned %T, want bool", out.Value())
	}
	return fired, nil
}
