package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/petasbytes/mcp-chat/internal/calc"
)

type CalculatorInput struct {
	Expression string `json:"expression" jsonschema_description:"Arithmetic expression, e.g. '2 + 3 * 4' or 'sqrt(16) + pi'."`
}

var CalculatorDefinition = Definition{
	Name: "calculator",
	Description: "Evaluate an arithmetic expression. Supports + - * / ^, parentheses, " +
		"the functions abs, round, min, max, sum, pow, sqrt, sin, cos, tan and the constants pi and e.",
	InputSchema: CalculatorInputSchema,
	Handler:     Calculator,
}

var CalculatorInputSchema = GenerateSchema[CalculatorInput]()

// Calculator evaluates the expression with the allow-listed grammar in calc.
func Calculator(_ context.Context, input json.RawMessage) (string, error) {
	var in CalculatorInput
	if err := json.Unmarshal(input, &in); err != nil {
		return "", err
	}
	v, err := calc.Eval(in.Expression)
	if err != nil {
		return "", fmt.Errorf("invalid expression: %w", err)
	}
	return "Result: " + calc.Format(v), nil
}
