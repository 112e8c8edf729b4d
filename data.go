package xval

import "strconv"

//////
// Observation indexing.
//////

// Dataset is anything with an observation axis that can be subset along it.
//
// Type Parameter:
//   - D: The concrete dataset type returned by Subset. Resamplers and
//     searches are generic over D so train and test splits keep the
//     caller's own type.
//
// Implementations must return owned copies from Subset: downstream code may
// mutate or shuffle a split without aliasing the source dataset.
type Dataset[D any] interface {
	// NObs returns the number of observations.
	NObs() int

	// Subset returns the observations at indices, in that order. Indices are
	// 0-based and must be in range; out-of-range indices are a programmer
	// error and panic.
	Subset(indices []int) D
}

// Observations is the type-erased form of Dataset, used for the members of
// a Table which may each have a different concrete type.
type Observations interface {
	NObs() int
	Take(indices []int) Observations
}

// Vector is a single array-like dataset: one observation per element.
type Vector[T any] []T

// NObs implements Dataset.
func (v Vector[T]) NObs() int { return len(v) }

// Subset implements Dataset.
func (v Vector[T]) Subset(indices []int) Vector[T] {
	out := make(Vector[T], len(indices))
	for i, idx := range indices {
		out[i] = v[idx]
	}

	return out
}

// Take implements Observations.
func (v Vector[T]) Take(indices []int) Observations { return v.Subset(indices) }

// Matrix is a dense column-major array whose observations lie along the
// trailing axis: every column is one observation of Rows features.
type Matrix[T any] struct {
	// Rows is the number of features per observation.
	Rows int

	// Data holds Rows*NObs() values, column after column.
	Data []T
}

// NewMatrix wraps column-major data with the given number of rows.
//
// Returns ErrValidation if rows is not positive or len(data) is not a
// multiple of rows.
func NewMatrix[T any](rows int, data []T) (Matrix[T], error) {
	if rows <= 0 {
		return Matrix[T]{}, validationf("matrix rows must be positive, got %d", rows)
	}

	if len(data)%rows != 0 {
		return Matrix[T]{}, validationf("matrix data length %d is not a multiple of %d rows", len(data), rows)
	}

	return Matrix[T]{Rows: rows, Data: data}, nil
}

// NObs implements Dataset.
func (m Matrix[T]) NObs() int {
	if m.Rows == 0 {
		return 0
	}

	return len(m.Data) / m.Rows
}

// Col returns observation j as a slice sharing the matrix storage.
func (m Matrix[T]) Col(j int) []T { return m.Data[j*m.Rows : (j+1)*m.Rows] }

// At returns the value at row i of observation j.
func (m Matrix[T]) At(i, j int) T { return m.Data[j*m.Rows+i] }

// Subset implements Dataset.
func (m Matrix[T]) Subset(indices []int) Matrix[T] {
	out := make([]T, 0, len(indices)*m.Rows)
	for _, j := range indices {
		out = append(out, m.Col(j)...)
	}

	return Matrix[T]{Rows: m.Rows, Data: out}
}

// Take implements Observations.
func (m Matrix[T]) Take(indices []int) Observations { return m.Subset(indices) }

// Column is one named member of a Table.
type Column struct {
	Name string
	Data Observations
}

// Table is an ordered, named collection of array-likes sharing the same
// observation count, for example features and targets kept side by side.
// Subsetting a Table subsets every member with the same indices.
type Table struct {
	names []string
	cols  []Observations
	n     int
}

// NewTable builds a Table from named columns.
//
// Returns ErrValidation if no columns are given, a name is empty or
// repeated, a column is nil, or the columns disagree on their observation
// count.
func NewTable(cols ...Column) (Table, error) {
	if len(cols) == 0 {
		return Table{}, validationf("table needs at least one column")
	}

	t := Table{
		names: make([]string, len(cols)),
		cols:  make([]Observations, len(cols)),
		n:     -1,
	}

	seen := make(map[string]bool, len(cols))

	for i, c := range cols {
		if c.Name == "" {
			return Table{}, validationf("table column %d has an empty name", i)
		}

		if seen[c.Name] {
			return Table{}, validationf("duplicate table column %q", c.Name)
		}

		seen[c.Name] = true

		if c.Data == nil {
			return Table{}, validationf("table column %q is nil", c.Name)
		}

		n := c.Data.NObs()
		if t.n >= 0 && n != t.n {
			return Table{}, validationf("table column %q has %d observations, expected %d", c.Name, n, t.n)
		}

		t.n = n
		t.names[i] = c.Name
		t.cols[i] = c.Data
	}

	return t, nil
}

// NewTuple builds a Table with positional column names "0", "1", ...
func NewTuple(data ...Observations) (Table, error) {
	cols := make([]Column, len(data))
	for i, d := range data {
		cols[i] = Column{Name: strconv.Itoa(i), Data: d}
	}

	return NewTable(cols...)
}

// NObs implements Dataset.
func (t Table) NObs() int { return t.n }

// Names returns the column names in order.
func (t Table) Names() []string { return append([]string(nil), t.names...) }

// Len returns the number of columns.
func (t Table) Len() int { return len(t.cols) }

// At returns column i.
func (t Table) At(i int) Observations { return t.cols[i] }

// Get returns the column called name.
func (t Table) Get(name string) (Observations, bool) {
	for i, n := range t.names {
		if n == name {
			return t.cols[i], true
		}
	}

	return nil, false
}

// Subset implements Dataset.
func (t Table) Subset(indices []int) Table {
	out := Table{
		names: t.names,
		cols:  make([]Observations, len(t.cols)),
		n:     len(indices),
	}

	for i, c := range t.cols {
		out.cols[i] = c.Take(indices)
	}

	return out
}

// Take implements Observations.
func (t Table) Take(indices []int) Observations { return t.Subset(indices) }

// Col returns the column called name as the concrete type C.
//
// Returns ErrValidation if there is no such column or it has another type.
//
// Usage example:
//
//	y, err := xval.Col[xval.Vector[float64]](train, "y")
func Col[C Observations](t Table, name string) (C, error) {
	var zero C

	o, ok := t.Get(name)
	if !ok {
		return zero, validationf("table has no column %q", name)
	}

	c, ok := o.(C)
	if !ok {
		return zero, validationf("table column %q has type %T", name, o)
	}

	return c, nil
}
