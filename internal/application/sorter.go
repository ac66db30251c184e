package application

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/ericfisherdev/policypanel/internal/domain/model"
)

// SortDirection is the order a column is sorted in.
type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// ParseSortDirection accepts "asc" or "desc"; the empty string means ascending.
func ParseSortDirection(s string) (SortDirection, error) {
	switch strings.ToLower(s) {
	case "", "asc":
		return SortAsc, nil
	case "desc":
		return SortDesc, nil
	default:
		return "", fmt.Errorf("invalid sort direction %q", s)
	}
}

// ValueComparator orders heterogeneous cell values. Empty values (absent,
// null, "", empty list) always sort last, in either direction.
type ValueComparator struct {
	mu       sync.Mutex
	collator *collate.Collator
}

// NewValueComparator creates a comparator whose text fallback is
// case-insensitive and digit-aware.
func NewValueComparator() *ValueComparator {
	return &ValueComparator{
		collator: collate.New(language.Und, collate.Loose, collate.Numeric),
	}
}

// Compare returns a negative number when a sorts before b in direction dir,
// positive when after, and zero when they are equal.
func (c *ValueComparator) Compare(a, b model.Value, dir SortDirection) int {
	an, bn := normalizeForSort(a), normalizeForSort(b)

	switch {
	case an == nil && bn == nil:
		return 0
	case an == nil:
		return 1
	case bn == nil:
		return -1
	}

	result := c.compareNonEmpty(an, bn)
	if dir == SortDesc {
		return -result
	}
	return result
}

func (c *ValueComparator) compareNonEmpty(a, b model.Value) int {
	if ab, ok := a.(model.Bool); ok {
		if bb, ok := b.(model.Bool); ok {
			return boolRank(bool(ab)) - boolRank(bool(bb))
		}
	}

	if an, ok := a.(model.Number); ok {
		if bn, ok := b.(model.Number); ok {
			return cmp.Compare(float64(an), float64(bn))
		}
	}

	if at, ok := a.(model.Text); ok {
		if bt, ok := b.(model.Text); ok {
			af, aok := parseNumericText(string(at))
			bf, bok := parseNumericText(string(bt))
			if aok && bok {
				return cmp.Compare(af, bf)
			}
		}
	}

	as := strings.TrimSpace(model.ValueText(a))
	bs := strings.TrimSpace(model.ValueText(b))

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.collator.CompareString(as, bs)
}

// normalizeForSort maps a cell value to the form it is ordered by, or nil
// for an empty value. A list sorts by its first element; a map carrying a
// "name" key sorts by that name as text.
func normalizeForSort(v model.Value) model.Value {
	switch val := v.(type) {
	case nil, model.Null:
		return nil
	case model.Text:
		if val == "" {
			return nil
		}
		return val
	case model.List:
		if len(val) == 0 {
			return nil
		}
		if m, ok := val[0].(model.Map); ok {
			if name, ok := m["name"]; ok {
				return model.Text(model.ValueText(name))
			}
		}
		return normalizeForSort(val[0])
	case model.Map:
		if name, ok := val["name"]; ok {
			return model.Text(model.ValueText(name))
		}
		return val
	default:
		return v
	}
}

// parseNumericText parses s as a number only if the whole trimmed string is
// a finite decimal.
func parseNumericText(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

func boolRank(b bool) int {
	if b {
		return 1
	}
	return 0
}

// SortRows returns a new slice of rows ordered by the named column. The input
// is never modified and equal rows keep their relative order.
func (c *ValueComparator) SortRows(rows []model.Row, column string, dir SortDirection) []model.Row {
	sorted := slices.Clone(rows)
	slices.SortStableFunc(sorted, func(a, b model.Row) int {
		return c.Compare(a.Value(column), b.Value(column), dir)
	})
	return sorted
}

// RowSorter keeps the original order of a table's rows and always sorts from
// that snapshot, so clearing a sort restores the exact original order.
type RowSorter struct {
	cmp      *ValueComparator
	original []model.Row
	column   string
	dir      SortDirection
}

// NewRowSorter snapshots rows.
func NewRowSorter(cmp *ValueComparator, rows []model.Row) *RowSorter {
	return &RowSorter{cmp: cmp, original: slices.Clone(rows)}
}

// Sort orders the snapshot by column in direction dir.
func (s *RowSorter) Sort(column string, dir SortDirection) []model.Row {
	s.column, s.dir = column, dir
	return s.cmp.SortRows(s.original, column, dir)
}

// Clear drops the active sort and returns the rows in their original order.
func (s *RowSorter) Clear() []model.Row {
	s.column, s.dir = "", ""
	return slices.Clone(s.original)
}

// Active returns the current sort column and direction; column is empty when
// no sort is applied.
func (s *RowSorter) Active() (string, SortDirection) {
	return s.column, s.dir
}

// Rows returns the current view.
func (s *RowSorter) Rows() []model.Row {
	if s.column == "" {
		return slices.Clone(s.original)
	}
	return s.cmp.SortRows(s.original, s.column, s.dir)
}
