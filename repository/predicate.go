package repository

import (
	"fmt"
	"strings"

	"github.com/uptrace/bun"
)

// Op represents a comparison operator in a predicate condition.
type Op string

const (
	Eq        Op = "="
	Ne        Op = "!="
	Gt        Op = ">"
	Gte       Op = ">="
	Lt        Op = "<"
	Lte       Op = "<="
	Like      Op = "LIKE"
	NotLike   Op = "NOT LIKE"
	In        Op = "IN"
	NotIn     Op = "NOT IN"
	IsNull    Op = "IS NULL"
	IsNotNull Op = "IS NOT NULL"
	Between   Op = "BETWEEN"
)

// Junction joins the conditions of one predicate group.
type Junction string

const (
	JunctionAnd Junction = "AND"
	JunctionOr  Junction = "OR"
)

// Condition is a single column comparison.
type Condition struct {
	Column string
	Op     Op
	Value  any
}

// Predicate is a structural filter: a group of conditions and nested groups
// joined by one junction. It is emitted into a bun query so the whole filter,
// including the repository's soft-delete clause, compiles into a single
// round-trip query — never client-side filtering.
//
// Column names are trusted identifiers; caller input belongs in values only.
type Predicate struct {
	junction Junction
	conds    []Condition
	groups   []*Predicate
}

// Where starts an AND predicate with one condition.
func Where(column string, op Op, value any) *Predicate {
	return &Predicate{
		junction: JunctionAnd,
		conds:    []Condition{{Column: column, Op: op, Value: value}},
	}
}

// AllOf groups predicates with AND.
func AllOf(preds ...*Predicate) *Predicate {
	return &Predicate{junction: JunctionAnd, groups: preds}
}

// AnyOf groups predicates with OR.
func AnyOf(preds ...*Predicate) *Predicate {
	return &Predicate{junction: JunctionOr, groups: preds}
}

// And appends a condition joined by this group's junction.
func (p *Predicate) And(column string, op Op, value any) *Predicate {
	p.conds = append(p.conds, Condition{Column: column, Op: op, Value: value})
	return p
}

// Group appends a nested predicate group.
func (p *Predicate) Group(group *Predicate) *Predicate {
	p.groups = append(p.groups, group)
	return p
}

// IsEmpty reports whether the predicate carries no conditions at all.
func (p *Predicate) IsEmpty() bool {
	if p == nil {
		return true
	}
	if len(p.conds) > 0 {
		return false
	}
	for _, g := range p.groups {
		if !g.IsEmpty() {
			return false
		}
	}
	return true
}

// Apply appends the predicate to a select query as one parenthesized group
// AND-combined with whatever clauses the query already carries.
func (p *Predicate) Apply(q *bun.SelectQuery) *bun.SelectQuery {
	if p.IsEmpty() {
		return q
	}
	return q.WhereGroup(" AND ", p.applyGroup)
}

func (p *Predicate) applyGroup(q *bun.SelectQuery) *bun.SelectQuery {
	or := p.junction == JunctionOr
	for _, c := range p.conds {
		q = c.apply(q, or)
	}
	for _, g := range p.groups {
		if g.IsEmpty() {
			continue
		}
		if or {
			q = q.WhereGroup(" OR ", g.applyGroup)
		} else {
			q = q.WhereGroup(" AND ", g.applyGroup)
		}
	}
	return q
}

func (c Condition) apply(q *bun.SelectQuery, or bool) *bun.SelectQuery {
	where := q.Where
	if or {
		where = q.WhereOr
	}

	switch c.Op {
	case IsNull:
		return where("? IS NULL", bun.Ident(c.Column))
	case IsNotNull:
		return where("? IS NOT NULL", bun.Ident(c.Column))
	case In, NotIn:
		return where(fmt.Sprintf("? %s (?)", c.Op), bun.Ident(c.Column), bun.In(c.Value))
	case Between:
		bounds, ok := c.Value.([]any)
		if !ok || len(bounds) != 2 {
			// A malformed BETWEEN never matches rather than matching everything.
			return where("1 = 0")
		}
		return where("? BETWEEN ? AND ?", bun.Ident(c.Column), bounds[0], bounds[1])
	default:
		return where(fmt.Sprintf("? %s ?", c.Op), bun.Ident(c.Column), c.Value)
	}
}

// Key renders a deterministic textual form of the predicate for cache key
// derivation. It is not SQL.
func (p *Predicate) Key() string {
	if p.IsEmpty() {
		return "all"
	}
	var b strings.Builder
	p.writeKey(&b)
	return b.String()
}

func (p *Predicate) writeKey(b *strings.Builder) {
	b.WriteByte('(')
	wrote := false
	for _, c := range p.conds {
		if wrote {
			b.WriteByte(' ')
			b.WriteString(string(p.junction))
			b.WriteByte(' ')
		}
		fmt.Fprintf(b, "%s %s %v", c.Column, c.Op, c.Value)
		wrote = true
	}
	for _, g := range p.groups {
		if g.IsEmpty() {
			continue
		}
		if wrote {
			b.WriteByte(' ')
			b.WriteString(string(p.junction))
			b.WriteByte(' ')
		}
		g.writeKey(b)
		wrote = true
	}
	b.WriteByte(')')
}
