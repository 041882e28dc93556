// Package rowsclose defines an analyzer that reports *sql.Rows which are never closed.
package rowsclose

import (
	"fmt"
	"go/ast"
	"go/types"

	"golang.org/x/tools/go/analysis"
	"golang.org/x/tools/go/analysis/passes/inspect"
	"golang.org/x/tools/go/ast/inspector"
)

// Analyzer is the rowsclose analyzer.
var Analyzer = &analysis.Analyzer{
	Name:     "rowsclose",
	Doc:      "reports database/sql Query results whose rows are never closed in the same function",
	Requires: []*analysis.Analyzer{inspect.Analyzer},
	Run:      run,
}

func run(pass *analysis.Pass) (any, error) {
	insp, ok := pass.ResultOf[inspect.Analyzer].(*inspector.Inspector)
	if !ok {
		return nil, fmt.Errorf("failed to assert type: expected *inspector.Inspector")
	}

	insp.Preorder([]ast.Node{(*ast.FuncDecl)(nil)}, func(n ast.Node) {
		fd, ok := n.(*ast.FuncDecl)
		if !ok || fd.Body == nil {
			return
		}
		checkBody(pass, fd.Body)
	})
	return nil, nil
}

// checkBody pairs every rows-producing assignment in body with a Close call on the same variable.
// Closures are part of the body, so a Close inside a deferred func literal counts.
func checkBody(pass *analysis.Pass, body *ast.BlockStmt) {
	opened := make(map[types.Object]*ast.CallExpr)
	var order []types.Object
	closed := make(map[types.Object]bool)

	ast.Inspect(body, func(n ast.Node) bool {
		switch x := n.(type) {
		case *ast.AssignStmt:
			if len(x.Rhs) != 1 || len(x.Lhs) == 0 {
				return true
			}
			call, ok := x.Rhs[0].(*ast.CallExpr)
			if !ok || !isRowsQuery(pass, call) {
				return true
			}
			id, ok := x.Lhs[0].(*ast.Ident)
			if !ok {
				return true
			}
			if id.Name == "_" {
				pass.Reportf(call.Pos(), "rows returned by %s are discarded and never closed", calleeName(call))
				return true
			}
			if obj := pass.TypesInfo.ObjectOf(id); obj != nil {
				if _, seen := opened[obj]; !seen {
					order = append(order, obj)
				}
				opened[obj] = call
			}
		case *ast.ExprStmt:
			if call, ok := x.X.(*ast.CallExpr); ok && isRowsQuery(pass, call) {
				pass.Reportf(call.Pos(), "rows returned by %s are discarded and never closed", calleeName(call))
			}
		case *ast.CallExpr:
			if obj := closeReceiver(pass, x); obj != nil {
				closed[obj] = true
			}
		}
		return true
	})

	for _, obj := range order {
		if !closed[obj] {
			call := opened[obj]
			pass.Reportf(call.Pos(), "rows %s returned by %s are never closed", obj.Name(), calleeName(call))
		}
	}
}

// isRowsQuery reports whether call is a database/sql method returning *sql.Rows.
func isRowsQuery(pass *analysis.Pass, call *ast.CallExpr) bool {
	sel, ok := call.Fun.(*ast.SelectorExpr)
	if !ok || pass.TypesInfo == nil {
		return false
	}
	fn, ok := pass.TypesInfo.Uses[sel.Sel].(*types.Func)
	if !ok || fn.Pkg() == nil || fn.Pkg().Path() != "database/sql" {
		return false
	}
	sig, ok := fn.Type().(*types.Signature)
	if !ok || sig.Results().Len() == 0 {
		return false
	}
	return isSQLRows(sig.Results().At(0).Type())
}

func isSQLRows(t types.Type) bool {
	ptr, ok := t.(*types.Pointer)
	if !ok {
		return false
	}
	named, ok := ptr.Elem().(*types.Named)
	if !ok {
		return false
	}
	obj := named.Obj()
	return obj.Pkg() != nil && obj.Pkg().Path() == "database/sql" && obj.Name() == "Rows"
}

// closeReceiver returns the variable x in an x.Close() call on *sql.Rows.
func closeReceiver(pass *analysis.Pass, call *ast.CallExpr) types.Object {
	sel, ok := call.Fun.(*ast.SelectorExpr)
	if !ok || sel.Sel.Name != "Close" {
		return nil
	}
	id, ok := sel.X.(*ast.Ident)
	if !ok {
		return nil
	}
	obj := pass.TypesInfo.ObjectOf(id)
	if obj == nil || !isSQLRows(obj.Type()) {
		return nil
	}
	return obj
}

func calleeName(call *ast.CallExpr) string {
	if sel, ok := call.Fun.(*ast.SelectorExpr); ok {
		return sel.Sel.Name
	}
	return "query"
}
