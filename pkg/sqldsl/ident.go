package sqldsl

import (
	"strings"

	"github.com/lib/pq"
)

// reservedIdents are keywords that cannot appear unquoted as a table or
// column name. Only the ones that commonly collide with model names are
// listed.
var reservedIdents = map[string]bool{
	"all": true, "and": true, "any": true, "as": true, "asc": true,
	"case": true, "check": true, "column": true, "default": true, "desc": true,
	"else": true, "end": true, "from": true, "grant": true, "group": true,
	"join": true, "limit": true, "not": true, "null": true, "offset": true,
	"on": true, "or": true, "order": true, "primary": true, "references": true,
	"select": true, "table": true, "then": true, "to": true, "union": true,
	"user": true, "using": true, "when": true, "where": true, "with": true,
}

// QuoteIdent renders a possibly schema-qualified identifier, quoting each
// part only when PostgreSQL would not accept it bare.
//
//	QuoteIdent("users")        // users
//	QuoteIdent("public.order") // public."order"
//	QuoteIdent("AuditLog")     // "AuditLog"
func QuoteIdent(name string) string {
	if name == "" {
		return ""
	}
	parts := strings.Split(name, ".")
	for i, p := range parts {
		if needsQuoting(p) {
			parts[i] = pq.QuoteIdentifier(p)
		}
	}
	return strings.Join(parts, ".")
}

func needsQuoting(ident string) bool {
	if ident == "" || reservedIdents[ident] {
		return true
	}
	if strings.HasPrefix(ident, `"`) && strings.HasSuffix(ident, `"`) && len(ident) > 1 {
		return false // already quoted
	}
	for i, r := range ident {
		switch {
		case r >= 'a' && r <= 'z', r == '_':
		case (r >= '0' && r <= '9') || r == '$':
			if i == 0 {
				return true
			}
		default:
			return true
		}
	}
	return false
}
