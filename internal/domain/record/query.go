package record

// Op is a comparison operator.
type Op uint8

const (
	OpEq Op = iota
	OpNe
	OpGt
	OpGte
	OpLt
	OpLte
)

// String returns the SQL spelling of the operator
func (o Op) String() string {
	switch o {
	case OpEq:
		return "="
	case OpNe:
		return "<>"
	case OpGt:
		return ">"
	case OpGte:
		return ">="
	case OpLt:
		return "<"
	case OpLte:
		return "<="
	default:
		return "?"
	}
}

// Predicate is a filter condition. It is sealed: only this package
// implements it, so compilers can switch over it exhaustively.
type Predicate interface {
	predicateNode()
}

// Comparison compares a column with a value.
type Comparison struct {
	Column string
	Op     Op
	Value  Value
}

// Membership matches rows whose column equals one of Values.
type Membership struct {
	Column string
	Values []Value
}

// NullCheck matches rows whose column is NULL (or NOT NULL when Negate).
type NullCheck struct {
	Column string
	Negate bool
}

// Junction combines predicates with AND, or with OR when Any is set.
type Junction struct {
	Any   bool
	Preds []Predicate
}

func (Comparison) predicateNode() {}
func (Membership) predicateNode() {}
func (NullCheck) predicateNode()  {}
func (Junction) predicateNode()   {}

// Eq matches col = v. Eq(col, Null()) matches NULL columns.
func Eq(col string, v Value) Predicate { return Comparison{Column: col, Op: OpEq, Value: v} }

// Ne matches col <> v. Ne(col, Null()) matches non-NULL columns.
func Ne(col string, v Value) Predicate { return Comparison{Column: col, Op: OpNe, Value: v} }

// Gt matches col > v.
func Gt(col string, v Value) Predicate { return Comparison{Column: col, Op: OpGt, Value: v} }

// Gte matches col >= v.
func Gte(col string, v Value) Predicate { return Comparison{Column: col, Op: OpGte, Value: v} }

// Lt matches col < v.
func Lt(col string, v Value) Predicate { return Comparison{Column: col, Op: OpLt, Value: v} }

// Lte matches col <= v.
func Lte(col string, v Value) Predicate { return Comparison{Column: col, Op: OpLte, Value: v} }

// In matches col IN (vs...).
func In(col string, vs ...Value) Predicate { return Membership{Column: col, Values: vs} }

// IsNull matches col IS NULL.
func IsNull(col string) Predicate { return NullCheck{Column: col} }

// NotNull matches col IS NOT NULL.
func NotNull(col string) Predicate { return NullCheck{Column: col, Negate: true} }

// And matches when every predicate matches.
func And(ps ...Predicate) Predicate { return Junction{Preds: ps} }

// Or matches when any predicate matches.
func Or(ps ...Predicate) Predicate { return Junction{Any: true, Preds: ps} }

// Order sorts by one column.
type Order struct {
	Column string
	Desc   bool
}

// Asc orders by col ascending.
func Asc(col string) Order { return Order{Column: col} }

// Desc orders by col descending.
func Desc(col string) Order { return Order{Column: col, Desc: true} }

// Query selects rows from one table. The zero Query returns every row
// ordered by id.
type Query struct {
	Where   Predicate
	OrderBy []Order
	Limit   int
}

// Where starts a query with a filter.
func Where(p Predicate) Query {
	return Query{Where: p}
}

// Sorted returns a copy of q with additional ordering.
func (q Query) Sorted(orders ...Order) Query {
	q.OrderBy = append(append([]Order(nil), q.OrderBy...), orders...)
	return q
}

// Columns returns every column referenced by the filter and ordering.
func (q Query) Columns() []string {
	var cols []string
	var walk func(p Predicate)
	walk = func(p Predicate) {
		switch p := p.(type) {
		case Comparison:
			cols = append(cols, p.Column)
		case Membership:
			cols = append(cols, p.Column)
		case NullCheck:
			cols = append(cols, p.Column)
		case Junction:
			for _, c := range p.Preds {
				walk(c)
			}
		}
	}
	if q.Where != nil {
		walk(q.Where)
	}
	for _, o := range q.OrderBy {
		cols = append(cols, o.Column)
	}
	return cols
}
