package sql

import (
	"sort"
	"strings"

	pg_query "github.com/pganalyze/pg_query_go/v6"
)

// ExtractTables returns the real table names referenced by the query,
// sorted and deduplicated. CTE names are excluded: they are query-scoped
// pseudo-tables, not schema objects. Exposed for diagnostics and tooling.
func ExtractTables(sqlText string) ([]string, error) {
	result, err := pg_query.Parse(stripTrailingSemicolon(strings.TrimSpace(sqlText)))
	if err != nil {
		return nil, err
	}

	ctes := make(map[string]struct{})
	for _, stmt := range result.Stmts {
		collectCTENames(stmt.Stmt, ctes)
	}

	tables := make(map[string]struct{})
	for _, stmt := range result.Stmts {
		collectTables(stmt.Stmt, ctes, tables)
	}

	names := make([]string, 0, len(tables))
	for name := range tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// IsDangerousCommand reports whether the SQL contains any mutating or
// administrative statement, including one hidden inside a CTE. When the SQL
// does not parse, it falls back to a conservative keyword scan of statement
// prefixes.
func IsDangerousCommand(sqlText string) bool {
	trimmed := strings.TrimSpace(sqlText)
	if trimmed == "" {
		return false
	}

	result, err := pg_query.Parse(stripTrailingSemicolon(trimmed))
	if err != nil {
		return hasDangerousPrefix(trimmed)
	}
	for _, stmt := range result.Stmts {
		if nodeIsDangerous(stmt.Stmt) {
			return true
		}
	}
	return false
}

func nodeIsDangerous(node *pg_query.Node) bool {
	if node == nil {
		return false
	}
	if _, dangerous := statementCommand(node); dangerous {
		return true
	}
	sel := node.Node.(*pg_query.Node_SelectStmt).SelectStmt
	return selectContainsDangerous(sel)
}

func selectContainsDangerous(sel *pg_query.SelectStmt) bool {
	if sel == nil {
		return false
	}
	if sel.WithClause != nil {
		for _, cte := range sel.WithClause.Ctes {
			if cteNode, ok := cte.Node.(*pg_query.Node_CommonTableExpr); ok {
				if nodeIsDangerous(cteNode.CommonTableExpr.Ctequery) {
					return true
				}
			}
		}
	}
	return selectContainsDangerous(sel.Larg) || selectContainsDangerous(sel.Rarg)
}

// hasDangerousPrefix scans unparseable text for a dangerous keyword at the
// start of any statement.
func hasDangerousPrefix(sqlText string) bool {
	dangerous := toSet(DefaultDangerousKeywords)
	for _, stmt := range strings.Split(sqlText, ";") {
		fields := strings.Fields(strings.ToLower(stmt))
		if len(fields) == 0 {
			continue
		}
		if _, ok := dangerous[fields[0]]; ok {
			return true
		}
	}
	return false
}

func collectCTENames(node *pg_query.Node, out map[string]struct{}) {
	sel := selectFromNode(node)
	if sel == nil {
		return
	}
	walkSelects(sel, func(s *pg_query.SelectStmt) {
		if s.WithClause == nil {
			return
		}
		for _, cte := range s.WithClause.Ctes {
			if cteNode, ok := cte.Node.(*pg_query.Node_CommonTableExpr); ok {
				out[strings.ToLower(cteNode.CommonTableExpr.Ctename)] = struct{}{}
			}
		}
	})
}

func collectTables(node *pg_query.Node, ctes map[string]struct{}, out map[string]struct{}) {
	sel := selectFromNode(node)
	if sel == nil {
		return
	}
	walkSelects(sel, func(s *pg_query.SelectStmt) {
		for _, item := range s.FromClause {
			collectFromItem(item, ctes, out)
		}
	})
}

func collectFromItem(node *pg_query.Node, ctes map[string]struct{}, out map[string]struct{}) {
	if node == nil {
		return
	}
	switch n := node.Node.(type) {
	case *pg_query.Node_RangeVar:
		name := strings.ToLower(n.RangeVar.Relname)
		if _, isCTE := ctes[name]; !isCTE {
			out[name] = struct{}{}
		}
	case *pg_query.Node_JoinExpr:
		collectFromItem(n.JoinExpr.Larg, ctes, out)
		collectFromItem(n.JoinExpr.Rarg, ctes, out)
	case *pg_query.Node_RangeSubselect:
		collectTables(n.RangeSubselect.Subquery, ctes, out)
	}
}

// walkSelects visits a SELECT and every SELECT nested in its CTE bodies,
// set-operation arms, FROM subqueries, and sublinks.
func walkSelects(sel *pg_query.SelectStmt, visit func(*pg_query.SelectStmt)) {
	if sel == nil {
		return
	}
	visit(sel)
	walkSelects(sel.Larg, visit)
	walkSelects(sel.Rarg, visit)
	if sel.WithClause != nil {
		for _, cte := range sel.WithClause.Ctes {
			if cteNode, ok := cte.Node.(*pg_query.Node_CommonTableExpr); ok {
				walkSelects(selectFromNode(cteNode.CommonTableExpr.Ctequery), visit)
			}
		}
	}
	for _, item := range sel.FromClause {
		walkFromSelects(item, visit)
	}
	for _, target := range sel.TargetList {
		walkExprSelects(target, visit)
	}
	walkExprSelects(sel.WhereClause, visit)
	walkExprSelects(sel.HavingClause, visit)
}

func walkFromSelects(node *pg_query.Node, visit func(*pg_query.SelectStmt)) {
	if node == nil {
		return
	}
	switch n := node.Node.(type) {
	case *pg_query.Node_JoinExpr:
		walkFromSelects(n.JoinExpr.Larg, visit)
		walkFromSelects(n.JoinExpr.Rarg, visit)
		walkExprSelects(n.JoinExpr.Quals, visit)
	case *pg_query.Node_RangeSubselect:
		walkSelects(selectFromNode(n.RangeSubselect.Subquery), visit)
	}
}

func walkExprSelects(node *pg_query.Node, visit func(*pg_query.SelectStmt)) {
	if node == nil {
		return
	}
	switch n := node.Node.(type) {
	case *pg_query.Node_ResTarget:
		walkExprSelects(n.ResTarget.Val, visit)
	case *pg_query.Node_SubLink:
		walkSelects(selectFromNode(n.SubLink.Subselect), visit)
	case *pg_query.Node_AExpr:
		walkExprSelects(n.AExpr.Lexpr, visit)
		walkExprSelects(n.AExpr.Rexpr, visit)
	case *pg_query.Node_BoolExpr:
		for _, arg := range n.BoolExpr.Args {
			walkExprSelects(arg, visit)
		}
	case *pg_query.Node_FuncCall:
		for _, arg := range n.FuncCall.Args {
			walkExprSelects(arg, visit)
		}
	}
}

func selectFromNode(node *pg_query.Node) *pg_query.SelectStmt {
	if node == nil {
		return nil
	}
	if sel, ok := node.Node.(*pg_query.Node_SelectStmt); ok {
		return sel.SelectStmt
	}
	return nil
}
