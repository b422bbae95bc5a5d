// Package sql validates AI-generated SQL against a schema whitelist before
// it is allowed anywhere near the database. Validation is AST-based via
// pg_query so dangerous statements are caught by node type, not by keyword
// matching.
package sql

import (
	"sort"
	"strings"

	pg_query "github.com/pganalyze/pg_query_go/v6"

	"github.com/alesierraalta/SQLAgent/pkg/apperrors"
	"github.com/alesierraalta/SQLAgent/pkg/schema"
)

// Config tunes the validator's whitelists. Zero values select the defaults.
type Config struct {
	// AllowedFunctions whitelists callable functions. Defaults to
	// DefaultAllowedFunctions.
	AllowedFunctions []string
	// DangerousKeywords are statement keywords rejected as table names.
	// Defaults to DefaultDangerousKeywords.
	DangerousKeywords []string
}

// Validator checks a single SQL statement against a schema catalog. It is
// stateless apart from its whitelists and safe for concurrent use.
type Validator struct {
	allowedFuncs   map[string]struct{}
	dangerousNames map[string]struct{}
	allowedSorted  []string
}

// NewValidator creates a validator with the given config.
func NewValidator(cfg Config) *Validator {
	funcs := cfg.AllowedFunctions
	if funcs == nil {
		funcs = DefaultAllowedFunctions
	}
	keywords := cfg.DangerousKeywords
	if keywords == nil {
		keywords = DefaultDangerousKeywords
	}

	lowered := make([]string, 0, len(funcs))
	for _, f := range funcs {
		lowered = append(lowered, strings.ToLower(f))
	}
	sorted := append([]string(nil), lowered...)
	sort.Strings(sorted)

	loweredKeywords := make([]string, 0, len(keywords))
	for _, k := range keywords {
		loweredKeywords = append(loweredKeywords, strings.ToLower(k))
	}

	return &Validator{
		allowedFuncs:   toSet(lowered),
		dangerousNames: toSet(loweredKeywords),
		allowedSorted:  sorted,
	}
}

// Validate checks one statement of SQL against the catalog. It returns nil
// when the query is a read-only SELECT touching only whitelisted tables,
// columns, and functions; otherwise one of the apperrors validation errors.
func (v *Validator) Validate(sqlText string, catalog *schema.Catalog) error {
	trimmed := strings.TrimSpace(sqlText)
	if trimmed == "" {
		return apperrors.ErrEmptyQuery
	}
	if hasCommentOutsideStrings(trimmed) {
		return apperrors.ErrCommentNotAllowed
	}

	stripped := stripTrailingSemicolon(trimmed)
	if stripped == "" {
		return apperrors.ErrEmptyQuery
	}
	if hasSemicolonOutsideStrings(stripped) {
		return apperrors.ErrMultipleStatements
	}

	result, err := pg_query.Parse(stripped)
	if err != nil {
		return &apperrors.SyntaxError{Detail: err.Error()}
	}
	if len(result.Stmts) == 0 {
		return apperrors.ErrEmptyQuery
	}
	if len(result.Stmts) > 1 {
		return apperrors.ErrMultipleStatements
	}

	return v.validateStatement(result.Stmts[0].Stmt, catalog, nil)
}

// validateStatement checks a statement node: it must be SELECT-shaped
// (plain SELECT, UNION, WITH, or a bare subquery all parse to SelectStmt)
// and its whole tree must pass the whitelist checks. ctes carries the CTE
// names visible from enclosing scopes; CTE bodies and subqueries recurse
// through here, which also catches DML hidden inside a WITH clause.
func (v *Validator) validateStatement(node *pg_query.Node, catalog *schema.Catalog, ctes map[string]struct{}) error {
	if node == nil {
		return apperrors.ErrEmptyQuery
	}
	if cmd, dangerous := statementCommand(node); dangerous {
		return &apperrors.DangerousCommandError{Command: cmd}
	}
	sel := node.Node.(*pg_query.Node_SelectStmt).SelectStmt
	return v.validateSelect(sel, catalog, cloneSet(ctes))
}

func (v *Validator) validateSelect(sel *pg_query.SelectStmt, catalog *schema.Catalog, ctes map[string]struct{}) error {
	if sel.IntoClause != nil {
		return &apperrors.DangerousCommandError{Command: "SELECT INTO"}
	}

	if sel.WithClause != nil {
		for _, cte := range sel.WithClause.Ctes {
			cteNode, ok := cte.Node.(*pg_query.Node_CommonTableExpr)
			if !ok {
				continue
			}
			name := strings.ToLower(cteNode.CommonTableExpr.Ctename)
			if sel.WithClause.Recursive {
				// A recursive CTE references itself inside its own body.
				ctes[name] = struct{}{}
			}
			if err := v.validateStatement(cteNode.CommonTableExpr.Ctequery, catalog, ctes); err != nil {
				return err
			}
			ctes[name] = struct{}{}
		}
	}

	// Set operations (UNION/INTERSECT/EXCEPT): validate both arms, then
	// check the combiner's ORDER BY against the left arm's output columns.
	if sel.Op != pg_query.SetOperation_SETOP_NONE && sel.Larg != nil && sel.Rarg != nil {
		if err := v.validateSelect(sel.Larg, catalog, cloneSet(ctes)); err != nil {
			return err
		}
		if err := v.validateSelect(sel.Rarg, catalog, cloneSet(ctes)); err != nil {
			return err
		}
		combiner := &selectScope{
			validator:     v,
			catalog:       catalog,
			ctes:          ctes,
			aliases:       map[string]string{},
			opaque:        map[string]struct{}{},
			selectAliases: outputNames(sel.Larg),
		}
		for _, sortBy := range sel.SortClause {
			if err := combiner.walkExpr(sortBy); err != nil {
				return err
			}
		}
		return nil
	}

	scope := &selectScope{
		validator:     v,
		catalog:       catalog,
		ctes:          ctes,
		aliases:       map[string]string{},
		opaque:        map[string]struct{}{},
		selectAliases: map[string]struct{}{},
	}

	for _, target := range sel.TargetList {
		if res, ok := target.Node.(*pg_query.Node_ResTarget); ok && res.ResTarget.Name != "" {
			scope.selectAliases[strings.ToLower(res.ResTarget.Name)] = struct{}{}
		}
	}

	// Resolve the FROM clause first so join conditions and the select list
	// can reference any table introduced anywhere in it.
	var joinQuals []*pg_query.Node
	for _, item := range sel.FromClause {
		if err := scope.addFromItem(item, &joinQuals); err != nil {
			return err
		}
	}

	exprLists := [][]*pg_query.Node{
		sel.TargetList,
		joinQuals,
		{sel.WhereClause, sel.HavingClause, sel.LimitCount, sel.LimitOffset},
		sel.GroupClause,
		sel.SortClause,
		sel.DistinctClause,
		sel.WindowClause,
	}
	for _, list := range sel.ValuesLists {
		exprLists = append(exprLists, []*pg_query.Node{list})
	}
	for _, list := range exprLists {
		for _, expr := range list {
			if err := scope.walkExpr(expr); err != nil {
				return err
			}
		}
	}
	return nil
}

// selectScope tracks name resolution for one SELECT: table aliases, CTE
// names, opaque relations (CTEs and FROM subqueries whose columns are not
// schema objects), and select-list aliases.
type selectScope struct {
	validator     *Validator
	catalog       *schema.Catalog
	ctes          map[string]struct{}
	aliases       map[string]string
	opaque        map[string]struct{}
	selectAliases map[string]struct{}
}

func (s *selectScope) addFromItem(node *pg_query.Node, joinQuals *[]*pg_query.Node) error {
	if node == nil {
		return nil
	}
	switch n := node.Node.(type) {
	case *pg_query.Node_RangeVar:
		return s.addRangeVar(n.RangeVar)

	case *pg_query.Node_JoinExpr:
		if err := s.addFromItem(n.JoinExpr.Larg, joinQuals); err != nil {
			return err
		}
		if err := s.addFromItem(n.JoinExpr.Rarg, joinQuals); err != nil {
			return err
		}
		if n.JoinExpr.Quals != nil {
			*joinQuals = append(*joinQuals, n.JoinExpr.Quals)
		}

	case *pg_query.Node_RangeSubselect:
		if err := s.validator.validateStatement(n.RangeSubselect.Subquery, s.catalog, s.ctes); err != nil {
			return err
		}
		if n.RangeSubselect.Alias != nil {
			s.opaque[strings.ToLower(n.RangeSubselect.Alias.Aliasname)] = struct{}{}
		}

	case *pg_query.Node_RangeFunction:
		for _, fn := range n.RangeFunction.Functions {
			if err := s.walkExpr(fn); err != nil {
				return err
			}
		}
		if n.RangeFunction.Alias != nil {
			s.opaque[strings.ToLower(n.RangeFunction.Alias.Aliasname)] = struct{}{}
		}
	}
	return nil
}

func (s *selectScope) addRangeVar(rv *pg_query.RangeVar) error {
	name := strings.ToLower(rv.Relname)
	alias := name
	if rv.Alias != nil && rv.Alias.Aliasname != "" {
		alias = strings.ToLower(rv.Alias.Aliasname)
	}

	// A reference to a CTE is not a schema object; its columns are exempt
	// from catalog checks.
	if _, isCTE := s.ctes[name]; isCTE {
		s.opaque[alias] = struct{}{}
		return nil
	}

	if _, reserved := s.validator.dangerousNames[name]; reserved {
		return &apperrors.DangerousCommandError{Command: strings.ToUpper(name)}
	}
	if !s.catalog.HasTable(name) {
		return &apperrors.InvalidTableError{Table: name, Allowed: s.catalog.AllowedTables()}
	}
	s.aliases[alias] = name
	return nil
}

// walkExpr traverses expression nodes, checking every function call and
// column reference it encounters. Unknown leaf nodes (constants, params,
// value functions) are ignored.
func (s *selectScope) walkExpr(node *pg_query.Node) error {
	if node == nil {
		return nil
	}
	switch n := node.Node.(type) {
	case *pg_query.Node_ColumnRef:
		return s.checkColumnRef(n.ColumnRef)

	case *pg_query.Node_FuncCall:
		return s.checkFuncCall(n.FuncCall)

	case *pg_query.Node_ResTarget:
		return s.walkExpr(n.ResTarget.Val)

	case *pg_query.Node_AExpr:
		if err := s.walkExpr(n.AExpr.Lexpr); err != nil {
			return err
		}
		return s.walkExpr(n.AExpr.Rexpr)

	case *pg_query.Node_BoolExpr:
		return s.walkAll(n.BoolExpr.Args)

	case *pg_query.Node_CaseExpr:
		if err := s.walkExpr(n.CaseExpr.Arg); err != nil {
			return err
		}
		if err := s.walkAll(n.CaseExpr.Args); err != nil {
			return err
		}
		return s.walkExpr(n.CaseExpr.Defresult)

	case *pg_query.Node_CaseWhen:
		if err := s.walkExpr(n.CaseWhen.Expr); err != nil {
			return err
		}
		return s.walkExpr(n.CaseWhen.Result)

	case *pg_query.Node_CoalesceExpr:
		return s.walkAll(n.CoalesceExpr.Args)

	case *pg_query.Node_MinMaxExpr:
		return s.walkAll(n.MinMaxExpr.Args)

	case *pg_query.Node_RowExpr:
		return s.walkAll(n.RowExpr.Args)

	case *pg_query.Node_AArrayExpr:
		return s.walkAll(n.AArrayExpr.Elements)

	case *pg_query.Node_List:
		return s.walkAll(n.List.Items)

	case *pg_query.Node_NullTest:
		return s.walkExpr(n.NullTest.Arg)

	case *pg_query.Node_BooleanTest:
		return s.walkExpr(n.BooleanTest.Arg)

	case *pg_query.Node_TypeCast:
		return s.walkExpr(n.TypeCast.Arg)

	case *pg_query.Node_CollateClause:
		return s.walkExpr(n.CollateClause.Arg)

	case *pg_query.Node_SortBy:
		return s.walkExpr(n.SortBy.Node)

	case *pg_query.Node_GroupingFunc:
		return s.walkAll(n.GroupingFunc.Args)

	case *pg_query.Node_NamedArgExpr:
		return s.walkExpr(n.NamedArgExpr.Arg)

	case *pg_query.Node_AIndirection:
		return s.walkExpr(n.AIndirection.Arg)

	case *pg_query.Node_WindowDef:
		if err := s.walkAll(n.WindowDef.PartitionClause); err != nil {
			return err
		}
		return s.walkAll(n.WindowDef.OrderClause)

	case *pg_query.Node_SubLink:
		if err := s.walkExpr(n.SubLink.Testexpr); err != nil {
			return err
		}
		return s.validator.validateStatement(n.SubLink.Subselect, s.catalog, s.ctes)
	}
	return nil
}

func (s *selectScope) walkAll(nodes []*pg_query.Node) error {
	for _, node := range nodes {
		if err := s.walkExpr(node); err != nil {
			return err
		}
	}
	return nil
}

func (s *selectScope) checkFuncCall(fc *pg_query.FuncCall) error {
	name := lastName(fc.Funcname)
	if name != "" {
		if _, ok := s.validator.allowedFuncs[name]; !ok {
			return &apperrors.FunctionNotAllowedError{Name: name, Allowed: s.validator.allowedSorted}
		}
	}
	if err := s.walkAll(fc.Args); err != nil {
		return err
	}
	if err := s.walkAll(fc.AggOrder); err != nil {
		return err
	}
	if err := s.walkExpr(fc.AggFilter); err != nil {
		return err
	}
	if fc.Over != nil {
		if err := s.walkAll(fc.Over.PartitionClause); err != nil {
			return err
		}
		return s.walkAll(fc.Over.OrderClause)
	}
	return nil
}

func (s *selectScope) checkColumnRef(cr *pg_query.ColumnRef) error {
	var names []string
	star := false
	for _, field := range cr.Fields {
		switch fn := field.Node.(type) {
		case *pg_query.Node_String_:
			names = append(names, strings.ToLower(fn.String_.Sval))
		case *pg_query.Node_AStar:
			star = true
		}
	}

	// Bare * is always accepted.
	if len(names) == 0 {
		return nil
	}

	// Unqualified column: a select-list alias resolves without table
	// lookup; otherwise the column must exist somewhere in the schema.
	if len(names) == 1 && !star {
		column := names[0]
		if _, ok := s.selectAliases[column]; ok {
			return nil
		}
		if s.catalog.HasColumnAnywhere(column) {
			return nil
		}
		return &apperrors.InvalidColumnError{Column: column, Allowed: s.catalog.AllColumns()}
	}

	// Qualified reference: the qualifier is the name before the column (or
	// the last name for t.*); schema qualifiers before it are ignored.
	qualifier := names[len(names)-1]
	column := ""
	if !star {
		qualifier = names[len(names)-2]
		column = names[len(names)-1]
	}

	if _, ok := s.opaque[qualifier]; ok {
		return nil
	}
	if _, ok := s.ctes[qualifier]; ok {
		return nil
	}

	table, ok := s.aliases[qualifier]
	if !ok {
		if !s.catalog.HasTable(qualifier) {
			return &apperrors.InvalidTableError{Table: qualifier, Allowed: s.catalog.AllowedTables()}
		}
		table = qualifier
	}
	if star {
		return nil
	}
	if !s.catalog.HasColumn(table, column) {
		return &apperrors.InvalidColumnError{Column: column, Table: table, Allowed: s.catalog.AllowedColumns(table)}
	}
	return nil
}

// outputNames collects the output column names of the left-most arm of a
// set operation: select-list aliases plus the final name of plain column
// references. ORDER BY on a UNION refers to these.
func outputNames(sel *pg_query.SelectStmt) map[string]struct{} {
	for sel.Larg != nil {
		sel = sel.Larg
	}
	out := make(map[string]struct{})
	for _, target := range sel.TargetList {
		res, ok := target.Node.(*pg_query.Node_ResTarget)
		if !ok {
			continue
		}
		if res.ResTarget.Name != "" {
			out[strings.ToLower(res.ResTarget.Name)] = struct{}{}
			continue
		}
		if res.ResTarget.Val == nil {
			continue
		}
		if cr, ok := res.ResTarget.Val.Node.(*pg_query.Node_ColumnRef); ok {
			if name := lastName(cr.ColumnRef.Fields); name != "" {
				out[name] = struct{}{}
			}
		}
	}
	return out
}

// lastName returns the lowercased final String element of a name list,
// skipping qualifiers like pg_catalog.
func lastName(fields []*pg_query.Node) string {
	name := ""
	for _, field := range fields {
		if s, ok := field.Node.(*pg_query.Node_String_); ok {
			name = strings.ToLower(s.String_.Sval)
		}
	}
	return name
}

func cloneSet(set map[string]struct{}) map[string]struct{} {
	cloned := make(map[string]struct{}, len(set))
	for k := range set {
		cloned[k] = struct{}{}
	}
	return cloned
}
