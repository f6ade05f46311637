// Package filter translates AIP-160 audit filters into SQL conditions.
package filter

import (
	"fmt"
	"strings"
	"time"

	"go.einride.tech/aip/filtering"
	expr "google.golang.org/genproto/googleapis/api/expr/v1alpha1"
)

// field is one filterable audit column.
type field struct {
	column string
	kind   *expr.Type
}

var auditFields = map[string]field{
	"type":        {column: "event_type", kind: filtering.TypeString},
	"actor_id":    {column: "actor_id", kind: filtering.TypeString},
	"from_status": {column: "from_status", kind: filtering.TypeString},
	"to_status":   {column: "to_status", kind: filtering.TypeString},
	"seq":         {column: "seq", kind: filtering.TypeInt},
	"ts":          {column: "timestamp", kind: filtering.TypeTimestamp},
}

var sqlOperators = map[string]string{
	filtering.FunctionEquals:        "=",
	filtering.FunctionNotEquals:     "!=",
	filtering.FunctionLessThan:      "<",
	filtering.FunctionLessEquals:    "<=",
	filtering.FunctionGreaterThan:   ">",
	filtering.FunctionGreaterEquals: ">=",
}

// SQLCondition is a WHERE fragment with positional parameters.
type SQLCondition struct {
	Clause string
	Params []any
}

// Empty reports whether the condition matches everything.
func (c SQLCondition) Empty() bool {
	return strings.TrimSpace(c.Clause) == ""
}

func declarations() (*filtering.Declarations, error) {
	opts := []filtering.DeclarationOption{filtering.DeclareStandardFunctions()}
	for name, f := range auditFields {
		opts = append(opts, filtering.DeclareIdent(name, f.kind))
	}
	return filtering.NewDeclarations(opts...)
}

// ParseAuditFilter type-checks filter against the audit fields (type,
// actor_id, from_status, to_status, seq, ts) and renders it as SQL. A
// blank filter yields an empty condition.
func ParseAuditFilter(filter string) (SQLCondition, error) {
	if strings.TrimSpace(filter) == "" {
		return SQLCondition{}, nil
	}
	decls, err := declarations()
	if err != nil {
		return SQLCondition{}, fmt.Errorf("declare audit fields: %w", err)
	}
	parsed, err := filtering.ParseFilterString(filter, decls)
	if err != nil {
		return SQLCondition{}, fmt.Errorf("parse filter: %w", err)
	}
	return translate(parsed.CheckedExpr.GetExpr())
}

func translate(e *expr.Expr) (SQLCondition, error) {
	call := e.GetCallExpr()
	if call == nil {
		return SQLCondition{}, fmt.Errorf("unsupported filter expression %T", e.GetExprKind())
	}
	args := call.GetArgs()
	switch fn := call.GetFunction(); fn {
	case filtering.FunctionAnd, filtering.FunctionFuzzyAnd:
		return join(args, "AND")
	case filtering.FunctionOr:
		return join(args, "OR")
	case filtering.FunctionNot:
		if len(args) != 1 {
			return SQLCondition{}, fmt.Errorf("NOT takes one argument")
		}
		inner, err := translate(args[0])
		if err != nil {
			return SQLCondition{}, err
		}
		return SQLCondition{Clause: "NOT (" + inner.Clause + ")", Params: inner.Params}, nil
	default:
		op, ok := sqlOperators[fn]
		if !ok {
			return SQLCondition{}, fmt.Errorf("unsupported function %s", fn)
		}
		return compare(args, op)
	}
}

func join(args []*expr.Expr, op string) (SQLCondition, error) {
	if len(args) != 2 {
		return SQLCondition{}, fmt.Errorf("%s takes two arguments", op)
	}
	var out SQLCondition
	clauses := make([]string, 0, 2)
	for _, arg := range args {
		cond, err := translate(arg)
		if err != nil {
			return SQLCondition{}, err
		}
		clauses = append(clauses, cond.Clause)
		out.Params = append(out.Params, cond.Params...)
	}
	out.Clause = "(" + clauses[0] + " " + op + " " + clauses[1] + ")"
	return out, nil
}

func compare(args []*expr.Expr, op string) (SQLCondition, error) {
	if len(args) != 2 {
		return SQLCondition{}, fmt.Errorf("comparison takes two arguments")
	}
	name := args[0].GetIdentExpr().GetName()
	f, ok := auditFields[name]
	if !ok {
		return SQLCondition{}, fmt.Errorf("unknown field %q", name)
	}
	value, err := literal(args[1])
	if err != nil {
		return SQLCondition{}, fmt.Errorf("%s: %w", name, err)
	}
	return SQLCondition{Clause: f.column + " " + op + " ?", Params: []any{value}}, nil
}

// literal returns the SQL parameter for a constant or a timestamp("...")
// call. Timestamps become unix milliseconds like the stored column.
func literal(e *expr.Expr) (any, error) {
	if call := e.GetCallExpr(); call != nil {
		if call.GetFunction() != filtering.FunctionTimestamp || len(call.GetArgs()) != 1 {
			return nil, fmt.Errorf("unsupported value function %s", call.GetFunction())
		}
		raw := call.GetArgs()[0].GetConstExpr().GetStringValue()
		at, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return nil, fmt.Errorf("invalid timestamp %q", raw)
		}
		return at.UTC().UnixMilli(), nil
	}
	c := e.GetConstExpr()
	switch kind := c.GetConstantKind().(type) {
	case *expr.Constant_StringValue:
		return kind.StringValue, nil
	case *expr.Constant_Int64Value:
		return kind.Int64Value, nil
	case *expr.Constant_Uint64Value:
		return kind.Uint64Value, nil
	case *expr.Constant_DoubleValue:
		return kind.DoubleValue, nil
	case *expr.Constant_BoolValue:
		return kind.BoolValue, nil
	default:
		return nil, fmt.Errorf("unsupported value %T", kind)
	}
}
