package sql

import (
	pg_query "github.com/pganalyze/pg_query_go/v6"
)

// statementCommand maps a statement node to the SQL command it represents.
// Returns ("", false) for SELECT-shaped statements (plain SELECT, UNION,
// WITH, bare subquery; PostgreSQL parses all of them to SelectStmt) and
// (command, true) for everything else. The mapping is by AST node type, so
// string obfuscation in the query text cannot hide a command.
func statementCommand(node *pg_query.Node) (string, bool) {
	switch n := node.Node.(type) {
	case *pg_query.Node_SelectStmt:
		return "", false

	case *pg_query.Node_InsertStmt:
		return "INSERT", true
	case *pg_query.Node_UpdateStmt:
		return "UPDATE", true
	case *pg_query.Node_DeleteStmt:
		return "DELETE", true
	case *pg_query.Node_MergeStmt:
		return "MERGE", true

	case *pg_query.Node_DropStmt, *pg_query.Node_DropdbStmt, *pg_query.Node_DropRoleStmt:
		return "DROP", true
	case *pg_query.Node_TruncateStmt:
		return "TRUNCATE", true

	case *pg_query.Node_CreateStmt,
		*pg_query.Node_CreateTableAsStmt,
		*pg_query.Node_CreatedbStmt,
		*pg_query.Node_CreateSchemaStmt,
		*pg_query.Node_CreateSeqStmt,
		*pg_query.Node_CreateFunctionStmt,
		*pg_query.Node_CreateRoleStmt,
		*pg_query.Node_CreateTrigStmt,
		*pg_query.Node_CreateExtensionStmt,
		*pg_query.Node_ViewStmt,
		*pg_query.Node_IndexStmt,
		*pg_query.Node_RuleStmt:
		return "CREATE", true

	case *pg_query.Node_AlterTableStmt,
		*pg_query.Node_AlterSystemStmt,
		*pg_query.Node_AlterRoleStmt,
		*pg_query.Node_AlterRoleSetStmt,
		*pg_query.Node_AlterSeqStmt,
		*pg_query.Node_AlterExtensionStmt,
		*pg_query.Node_RenameStmt:
		return "ALTER", true

	case *pg_query.Node_GrantStmt:
		if n.GrantStmt.IsGrant {
			return "GRANT", true
		}
		return "REVOKE", true
	case *pg_query.Node_GrantRoleStmt:
		if n.GrantRoleStmt.IsGrant {
			return "GRANT", true
		}
		return "REVOKE", true

	case *pg_query.Node_ExecuteStmt:
		return "EXECUTE", true
	case *pg_query.Node_PrepareStmt:
		return "PREPARE", true
	case *pg_query.Node_DoStmt:
		return "DO", true
	case *pg_query.Node_CallStmt:
		return "CALL", true
	case *pg_query.Node_CopyStmt:
		return "COPY", true
	case *pg_query.Node_TransactionStmt:
		return "TRANSACTION", true
	case *pg_query.Node_VariableSetStmt:
		return "SET", true
	case *pg_query.Node_VariableShowStmt:
		return "SHOW", true
	case *pg_query.Node_ExplainStmt:
		return "EXPLAIN", true
	case *pg_query.Node_LockStmt:
		return "LOCK", true
	case *pg_query.Node_VacuumStmt:
		return "VACUUM", true
	case *pg_query.Node_ClusterStmt:
		return "CLUSTER", true
	case *pg_query.Node_ReindexStmt:
		return "REINDEX", true
	case *pg_query.Node_RefreshMatViewStmt:
		return "REFRESH", true
	case *pg_query.Node_ListenStmt, *pg_query.Node_UnlistenStmt:
		return "LISTEN", true
	case *pg_query.Node_NotifyStmt:
		return "NOTIFY", true
	case *pg_query.Node_DiscardStmt:
		return "DISCARD", true
	case *pg_query.Node_CommentStmt:
		return "COMMENT", true
	}
	return "UNKNOWN", true
}
