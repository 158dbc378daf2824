package persistence

import (
	"fmt"

	"github.com/tonka1973/BreweryManager-sub001/internal/domain/record"
	"github.com/tonka1973/BreweryManager-sub001/internal/domain/shared"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// compilePredicate turns a record predicate into a gorm clause expression.
// Column names are quoted identifiers checked against the table schema and
// values are always bound parameters.
func compilePredicate(t record.TableSchema, p record.Predicate) (clause.Expression, error) {
	switch p := p.(type) {
	case record.Comparison:
		if !t.HasColumn(p.Column) {
			return nil, unknownColumn(t, p.Column)
		}
		return compileComparison(p)

	case record.Membership:
		if !t.HasColumn(p.Column) {
			return nil, unknownColumn(t, p.Column)
		}
		values := make([]any, 0, len(p.Values))
		for _, v := range p.Values {
			if v.IsAbsent() || v.IsNull() {
				return nil, shared.Errorf(shared.CodeInvalidInput, "IN on %s cannot contain %s", p.Column, v)
			}
			values = append(values, v.Native())
		}
		return clause.IN{Column: clause.Column{Name: p.Column}, Values: values}, nil

	case record.NullCheck:
		if !t.HasColumn(p.Column) {
			return nil, unknownColumn(t, p.Column)
		}
		if p.Negate {
			return clause.Neq{Column: clause.Column{Name: p.Column}, Value: nil}, nil
		}
		return clause.Eq{Column: clause.Column{Name: p.Column}, Value: nil}, nil

	case record.Junction:
		if len(p.Preds) == 0 {
			if p.Any {
				return clause.Expr{SQL: "1 = 0"}, nil
			}
			return clause.Expr{SQL: "1 = 1"}, nil
		}
		exprs := make([]clause.Expression, 0, len(p.Preds))
		for _, child := range p.Preds {
			e, err := compilePredicate(t, child)
			if err != nil {
				return nil, err
			}
			exprs = append(exprs, e)
		}
		if p.Any {
			return clause.Or(exprs...), nil
		}
		return clause.And(exprs...), nil

	default:
		return nil, shared.Errorf(shared.CodeInvalidInput, "unsupported predicate %T", p)
	}
}

func compileComparison(p record.Comparison) (clause.Expression, error) {
	col := clause.Column{Name: p.Column}
	if p.Value.IsAbsent() {
		return nil, shared.Errorf(shared.CodeInvalidInput, "cannot compare %s with an absent value", p.Column)
	}
	if p.Value.IsNull() {
		switch p.Op {
		case record.OpEq:
			return clause.Eq{Column: col, Value: nil}, nil
		case record.OpNe:
			return clause.Neq{Column: col, Value: nil}, nil
		default:
			return nil, shared.Errorf(shared.CodeInvalidInput, "cannot order %s against NULL", p.Column)
		}
	}

	v := p.Value.Native()
	switch p.Op {
	case record.OpEq:
		return clause.Eq{Column: col, Value: v}, nil
	case record.OpNe:
		return clause.Neq{Column: col, Value: v}, nil
	case record.OpGt:
		return clause.Gt{Column: col, Value: v}, nil
	case record.OpGte:
		return clause.Gte{Column: col, Value: v}, nil
	case record.OpLt:
		return clause.Lt{Column: col, Value: v}, nil
	case record.OpLte:
		return clause.Lte{Column: col, Value: v}, nil
	default:
		return nil, shared.Errorf(shared.CodeInvalidInput, "unsupported operator %d", p.Op)
	}
}

// applyQuery adds filter, ordering and limit to tx. Every query ends with
// an id ASC tie-breaker so results are deterministic.
func applyQuery(tx *gorm.DB, t record.TableSchema, q record.Query) (*gorm.DB, error) {
	if q.Where != nil {
		expr, err := compilePredicate(t, q.Where)
		if err != nil {
			return nil, err
		}
		tx = tx.Where(expr)
	}
	for _, o := range q.OrderBy {
		if !t.HasColumn(o.Column) {
			return nil, unknownColumn(t, o.Column)
		}
		tx = tx.Order(clause.OrderByColumn{Column: clause.Column{Name: o.Column}, Desc: o.Desc})
	}
	tx = tx.Order(clause.OrderByColumn{Column: clause.Column{Name: record.ColumnID}})
	if q.Limit > 0 {
		tx = tx.Limit(q.Limit)
	}
	return tx, nil
}

func unknownColumn(t record.TableSchema, col string) error {
	return shared.Errorf(shared.CodeInvalidInput, "unknown column %s.%s", t.Name, col)
}

func unknownTable(name string) error {
	return shared.NewDomainError(shared.CodeInvalidInput, fmt.Sprintf("unknown table %q", name))
}
