package planner

import (
	"github.com/tuannm99/novaorm/internal/record"
)

// Plan is the interface for executable plans.
type Plan interface {
	planNode()
}

// WhereEq is a resolved equality predicate; Value is the raw literal.
type WhereEq struct {
	Column string
	Value  any
}

// ----- Plan nodes -----

type CreateTablePlan struct {
	TableName   string
	Schema      record.Schema
	IfNotExists bool
}

func (*CreateTablePlan) planNode() {}

type DropTablePlan struct {
	TableName string
	IfExists  bool
}

func (*DropTablePlan) planNode() {}

type ShowTablesPlan struct{}

func (*ShowTablesPlan) planNode() {}

type InsertPlan struct {
	TableName string
	Columns   []string // empty => schema order
	Values    []any
}

func (*InsertPlan) planNode() {}

// SeqScanPlan walks every row, filters on Where, and projects Columns.
type SeqScanPlan struct {
	TableName string
	Columns   []string // empty => all columns
	Where     *WhereEq
}

func (*SeqScanPlan) planNode() {}

// IndexLookupPlan fetches at most one row through the primary key.
type IndexLookupPlan struct {
	TableName string
	Columns   []string
	Key       any
}

func (*IndexLookupPlan) planNode() {}

type DeletePlan struct {
	TableName string
	Where     *WhereEq
}

func (*DeletePlan) planNode() {}
