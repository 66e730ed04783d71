// Package softdelete excludes tombstoned rows from read queries.
//
// An Interceptor sits in front of every statement a session executes. For a
// SELECT whose FROM tree it can analyze, it adds one predicate per
// soft-deletable entity:
//
//	SELECT * FROM orders LEFT JOIN users ON orders.user_id = users.id
//
// becomes
//
//	SELECT * FROM orders LEFT JOIN users ON orders.user_id = users.id
//	WHERE (orders.deleted_at IS NULL AND (users.deleted_at IS NULL OR users.id IS NULL))
//
// The OR keeps orders whose user is missing: the outer join fills the users
// columns with NULL, and the NULL identity tells that row apart from a
// tombstoned user.
//
// Statements it cannot analyze (compound queries, WITH clauses, raw SQL) get
// the blanket Criteria instead. Writes and follow-up loads are left alone.
//
// Callers opt out per execution with IncludeDeleted or ExcludeEntities,
// directly in Options or through a context (ContextWith).
package softdelete
