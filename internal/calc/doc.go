// Package calc evaluates arithmetic expressions for the calculator tool.
//
// Grammar (lowest to highest precedence):
//
//	expr    = term { ("+" | "-") term }
//	term    = unary { ("*" | "/") unary }
//	unary   = ("+" | "-") unary | power
//	power   = primary [ ("^" | "**") unary ]
//	primary = number | name [ "(" [ expr { "," expr } ] ")" ] | "(" expr ")"
//
// Names resolve only against a fixed allow-list of functions and constants.
// The evaluator has no access to the host: no variables, attributes, strings
// or imports.
package calc
