// Package buildutil reads and edits attributes of calls in parsed
// Starlark files such as MODULE.bazel.
package buildutil

import (
	"github.com/bazelbuild/buildtools/build"
)

// FuncName returns the function name from a CallExpr.
// Returns empty string if the call is not a simple function call
// (e.g., method calls like foo.bar()).
func FuncName(call *build.CallExpr) string {
	if ident, ok := call.X.(*build.Ident); ok {
		return ident.Name
	}
	return ""
}

// FindCalls returns the top-level calls to the named function, in file order.
func FindCalls(f *build.File, name string) []*build.CallExpr {
	var calls []*build.CallExpr
	for _, stmt := range f.Stmt {
		call, ok := stmt.(*build.CallExpr)
		if ok && FuncName(call) == name {
			calls = append(calls, call)
		}
	}
	return calls
}

// String extracts a string attribute from a function call by name.
// Returns empty string if the attribute is not found or not a string.
func String(call *build.CallExpr, name string) string {
	if assign := findAssign(call, name); assign != nil {
		if str, ok := assign.RHS.(*build.StringExpr); ok {
			return str.Value
		}
	}
	return ""
}

// SetString sets a keyword attribute of call to a string literal,
// replacing any existing value or appending the keyword if absent.
func SetString(call *build.CallExpr, name, value string) {
	if assign := findAssign(call, name); assign != nil {
		assign.RHS = &build.StringExpr{Value: value}
		return
	}
	call.List = append(call.List, &build.AssignExpr{
		LHS: &build.Ident{Name: name},
		Op:  "=",
		RHS: &build.StringExpr{Value: value},
	})
}

func findAssign(call *build.CallExpr, name string) *build.AssignExpr {
	for _, arg := range call.List {
		assign, ok := arg.(*build.AssignExpr)
		if !ok {
			continue
		}
		lhs, ok := assign.LHS.(*build.Ident)
		if ok && lhs.Name == name {
			return assign
		}
	}
	return nil
}
