package calc

import (
	"fmt"
	"math"
)

var constants = map[string]float64{
	"pi": math.Pi,
	"e":  math.E,
}

type builtin struct {
	minArgs int
	maxArgs int // -1 means variadic
	fn      func(args []float64) (float64, error)
}

var functions = map[string]builtin{
	"abs":   {1, 1, func(a []float64) (float64, error) { return math.Abs(a[0]), nil }},
	"sqrt":  {1, 1, sqrt},
	"sin":   {1, 1, func(a []float64) (float64, error) { return math.Sin(a[0]), nil }},
	"cos":   {1, 1, func(a []float64) (float64, error) { return math.Cos(a[0]), nil }},
	"tan":   {1, 1, func(a []float64) (float64, error) { return math.Tan(a[0]), nil }},
	"pow":   {2, 2, func(a []float64) (float64, error) { return math.Pow(a[0], a[1]), nil }},
	"round": {1, 2, round},
	"min": {1, -1, func(a []float64) (float64, error) {
		m := a[0]
		for _, v := range a[1:] {
			m = math.Min(m, v)
		}
		return m, nil
	}},
	"max": {1, -1, func(a []float64) (float64, error) {
		m := a[0]
		for _, v := range a[1:] {
			m = math.Max(m, v)
		}
		return m, nil
	}},
	"sum": {0, -1, func(a []float64) (float64, error) {
		var s float64
		for _, v := range a {
			s += v
		}
		return s, nil
	}},
}

// Names lists the allowed function and constant names.
func Names() []string {
	return []string{"abs", "round", "min", "max", "sum", "pow", "sqrt", "sin", "cos", "tan", "pi", "e"}
}

func sqrt(a []float64) (float64, error) {
	if a[0] < 0 {
		return 0, fmt.Errorf("sqrt of negative number")
	}
	return math.Sqrt(a[0]), nil
}

// round rounds half to even, optionally to a number of decimal places.
func round(a []float64) (float64, error) {
	if len(a) == 1 {
		return math.RoundToEven(a[0]), nil
	}
	digits := a[1]
	if digits != math.Trunc(digits) {
		return 0, fmt.Errorf("round digits must be an integer")
	}
	scale := math.Pow(10, digits)
	return math.RoundToEven(a[0]*scale) / scale, nil
}
