// Package jdbc splits a database table into fragments by partitioning one
// column, so that every fragment becomes an independent SELECT with its own
// WHERE constraint.
//
// The partitioning is declared on the request:
//
//	PARTITION_BY=<column>:<int|enum>
//	RANGE=<start>:<end> for int (end excluded), <value>[:<value>...] for enum
//	INTERVAL=<step> for int
//
// Besides the declared partitions, one fragment covers rows outside the range
// (or with none of the enum values) and one covers NULLs, so the fragments
// together always return every row of the table.
package jdbc

import (
	"context"
	"flag"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/fedscan/fedscan/pkg/enumerator"
	"github.com/fedscan/fedscan/pkg/fragment"
)

// Name under which the jdbc enumerator is registered.
const Name = "jdbc"

// Request options read by the enumerator.
const (
	PartitionByOption = "PARTITION_BY"
	RangeOption       = "RANGE"
	IntervalOption    = "INTERVAL"
)

// PartitionType is the kind of column a table is partitioned by.
type PartitionType string

const (
	Int  PartitionType = "int"
	Enum PartitionType = "enum"
)

// Config for the jdbc enumerator.
type Config struct {
	MaxPartitions int `yaml:"max_partitions"`
}

// RegisterFlagsWithPrefix adds the flags required to config this to the given FlagSet.
func (cfg *Config) RegisterFlagsWithPrefix(prefix string, f *flag.FlagSet) {
	f.IntVar(&cfg.MaxPartitions, prefix+"jdbc.max-partitions", 10000, "Maximum number of partitions a single table may declare through RANGE and INTERVAL or enum values.")
}

// Validate the config.
func (cfg *Config) Validate() error {
	if cfg.MaxPartitions < 1 {
		return errors.Errorf("jdbc max partitions must be positive, got %d", cfg.MaxPartitions)
	}
	return nil
}

// Metadata carries the WHERE constraint selecting the rows of one fragment.
// An empty Constraint selects the whole table.
type Metadata struct {
	Column     string `json:"column,omitempty"`
	Constraint string `json:"constraint,omitempty"`
}

// Enumerator produces one fragment per partition of the table.
type Enumerator struct {
	table         string
	column        string
	kind          PartitionType
	rangeSpec     string
	interval      int64
	unpartitioned bool
	maxPartitions int
}

// NewFactory returns the factory registered under Name.
func NewFactory(cfg Config) enumerator.Factory {
	return func(req *fragment.RequestContext) (enumerator.Enumerator, error) {
		return newEnumerator(req, cfg.MaxPartitions)
	}
}

func newEnumerator(req *fragment.RequestContext, maxPartitions int) (enumerator.Enumerator, error) {
	e := &Enumerator{table: req.DataSource, maxPartitions: maxPartitions}

	partitionBy, ok := req.Option(PartitionByOption)
	if !ok {
		e.unpartitioned = true
		return e, nil
	}
	column, kind, ok := strings.Cut(partitionBy, ":")
	if !ok || column == "" {
		return nil, fragment.ConfigErrorf("the parameter %s must be <column>:<type>, got %q", PartitionByOption, partitionBy)
	}
	e.column = column
	e.kind = PartitionType(strings.ToLower(kind))
	if e.kind != Int && e.kind != Enum {
		return nil, fragment.ConfigErrorf("the partition type %q is not supported, use %s or %s", kind, Int, Enum)
	}

	if e.rangeSpec, ok = req.Option(RangeOption); !ok || e.rangeSpec == "" {
		return nil, fragment.ConfigErrorf("the parameter %s must be specified along with %s", RangeOption, PartitionByOption)
	}

	if e.kind == Int {
		interval, ok := req.Option(IntervalOption)
		if !ok {
			return nil, fragment.ConfigErrorf("the parameter %s must be specified with partition type %s", IntervalOption, Int)
		}
		step, err := strconv.ParseInt(interval, 10, 64)
		if err != nil || step < 1 {
			return nil, fragment.ConfigErrorf("the parameter %s must be a positive integer, got %q", IntervalOption, interval)
		}
		e.interval = step
	}
	return e, nil
}

// Fragments implements enumerator.Enumerator.
func (e *Enumerator) Fragments(ctx context.Context) ([]fragment.Fragment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if e.unpartitioned {
		return []fragment.Fragment{fragment.New(e.table, Metadata{})}, nil
	}

	var constraints []string
	switch e.kind {
	case Int:
		start, end, err := parseIntRange(e.rangeSpec)
		if err != nil {
			return nil, err
		}
		if n := intPartitions(start, end, e.interval); n > uint64(e.maxPartitions) {
			return nil, fragment.ConfigErrorf("the parameters %s=%s and %s=%d declare %d partitions, more than the maximum of %d",
				RangeOption, e.rangeSpec, IntervalOption, e.interval, n, e.maxPartitions)
		}
		constraints = intConstraints(e.column, start, end, e.interval)
	case Enum:
		values := strings.Split(e.rangeSpec, ":")
		if len(values) > e.maxPartitions {
			return nil, fragment.ConfigErrorf("the parameter %s declares %d values, more than the maximum of %d",
				RangeOption, len(values), e.maxPartitions)
		}
		constraints = enumConstraints(e.column, values)
	}
	constraints = append(constraints, e.column+" IS NULL")

	fragments := make([]fragment.Fragment, 0, len(constraints))
	for _, c := range constraints {
		fragments = append(fragments, fragment.New(e.table, Metadata{Column: e.column, Constraint: c}))
	}
	return fragments, nil
}

func parseIntRange(spec string) (int64, int64, error) {
	parts := strings.Split(spec, ":")
	if len(parts) != 2 {
		return 0, 0, fragment.ConfigErrorf("the parameter %s must be <start>:<end> for partition type %s, got %q", RangeOption, Int, spec)
	}
	start, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, 0, fragment.ConfigErrorf("the range start %q is not an integer", parts[0])
	}
	end, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return 0, 0, fragment.ConfigErrorf("the range end %q is not an integer", parts[1])
	}
	if end <= start {
		return 0, 0, fragment.ConfigErrorf("the range end %d must be greater than the range start %d", end, start)
	}
	return start, end, nil
}

// intPartitions is the number of interval sized chunks covering [start, end).
// end must be greater than start.
func intPartitions(start, end, interval int64) uint64 {
	span := uint64(end) - uint64(start)
	n := span / uint64(interval)
	if span%uint64(interval) != 0 {
		n++
	}
	return n
}

// intConstraints covers [start, end) in steps of interval, plus everything
// below start and everything from end on.
func intConstraints(column string, start, end, interval int64) []string {
	out := []string{rangeConstraint(column, nil, &start)}
	for lo := start; lo < end; {
		hi := lo + interval
		if hi > end || hi < lo {
			hi = end
		}
		l, h := lo, hi
		out = append(out, rangeConstraint(column, &l, &h))
		lo = hi
	}
	return append(out, rangeConstraint(column, &end, nil))
}

func rangeConstraint(column string, start, end *int64) string {
	switch {
	case start == nil:
		return column + " < " + strconv.FormatInt(*end, 10)
	case end == nil:
		return column + " >= " + strconv.FormatInt(*start, 10)
	default:
		return column + " >= " + strconv.FormatInt(*start, 10) + " AND " + column + " < " + strconv.FormatInt(*end, 10)
	}
}

// enumConstraints selects each value, then every row matching none of them.
func enumConstraints(column string, values []string) []string {
	out := make([]string, 0, len(values)+1)
	excluded := make([]string, 0, len(values))
	for _, v := range values {
		quoted := quote(v)
		out = append(out, column+" = "+quoted)
		excluded = append(excluded, column+" <> "+quoted)
	}
	return append(out, "( "+strings.Join(excluded, " AND ")+" )")
}

func quote(v string) string {
	return "'" + strings.ReplaceAll(v, "'", "''") + "'"
}
