package wa

import (
	"go/ast"
	"go/parser"
	"go/token"
	"testing"
)

// The library delivers events on its own goroutines and can re-enter
// handler registration during reconnects. Calling into whatsmeow while
// holding mu therefore deadlocks. This test parses client.go and fails if
// AddEventHandler or RemoveEventHandler ever call the wrapped client with
// the mutex held (including via a deferred unlock).
func TestHandlerRegistrationNeverCallsLibraryUnderMutex(t *testing.T) {
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, "client.go", nil, 0)
	if err != nil {
		t.Fatalf("parse client.go: %v", err)
	}

	for fn, libCall := range map[string]string{
		"AddEventHandler":    "AddEventHandler",
		"RemoveEventHandler": "RemoveEventHandler",
	} {
		checkNoLibCallUnderMu(t, fset, f, fn, libCall)
	}
}

func checkNoLibCallUnderMu(t *testing.T, fset *token.FileSet, f *ast.File, funcName, libCall string) {
	t.Helper()

	var fn *ast.FuncDecl
	for _, d := range f.Decls {
		fd, ok := d.(*ast.FuncDecl)
		if ok && fd.Recv != nil && fd.Name != nil && fd.Name.Name == funcName {
			fn = fd
			break
		}
	}
	if fn == nil || fn.Body == nil {
		t.Fatalf("method %s not found in client.go", funcName)
	}

	lockDepth := 0
	sawLibCall := false

	for _, stmt := range fn.Body.List {
		if ds, ok := stmt.(*ast.DeferStmt); ok && isMuCall(ds.Call, "Unlock") {
			t.Fatalf("%s defers mu.Unlock; the library call would run under the mutex", funcName)
		}

		ast.Inspect(stmt, func(n ast.Node) bool {
			call, ok := n.(*ast.CallExpr)
			if !ok {
				return true
			}
			switch {
			case isMuCall(call, "Lock"):
				lockDepth++
			case isMuCall(call, "Unlock"):
				if lockDepth > 0 {
					lockDepth--
				}
			case isCliCall(call, libCall):
				sawLibCall = true
				if lockDepth != 0 {
					t.Fatalf("%s calls cli.%s while holding mu at %s",
						funcName, libCall, fset.Position(call.Pos()))
				}
			}
			return true
		})
	}

	if !sawLibCall {
		t.Fatalf("%s: expected a call to cli.%s", funcName, libCall)
	}
}

// isMuCall matches <anything>.mu.<method>() calls.
func isMuCall(call *ast.CallExpr, method string) bool {
	sel, ok := call.Fun.(*ast.SelectorExpr)
	if !ok || sel.Sel == nil || sel.Sel.Name != method {
		return false
	}
	inner, ok := sel.X.(*ast.SelectorExpr)
	return ok && inner.Sel != nil && inner.Sel.Name == "mu"
}

// isCliCall matches <anything>.cli.<method>() calls.
func isCliCall(call *ast.CallExpr, method string) bool {
	sel, ok := call.Fun.(*ast.SelectorExpr)
	if !ok || sel.Sel == nil || sel.Sel.Name != method {
		return false
	}
	inner, ok := sel.X.(*ast.SelectorExpr)
	return ok && inner.Sel != nil && inner.Sel.Name == "cli"
}
