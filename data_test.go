package xval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVectorSubsetCopies(t *testing.T) {
	v := Vector[int]{10, 20, 30, 40}

	s := v.Subset([]int{3, 0})
	assert.Equal(t, Vector[int]{40, 10}, s)

	s[0] = 99
	assert.Equal(t, 40, v[3])
}

func TestMatrix(t *testing.T) {
	// Three observations of two features each.
	m, err := NewMatrix(2, []float64{1, 2, 3, 4, 5, 6})
	require.NoError(t, err)

	assert.Equal(t, 3, m.NObs())
	assert.Equal(t, []float64{3, 4}, m.Col(1))
	assert.Equal(t, 6.0, m.At(1, 2))

	s := m.Subset([]int{2, 0})
	assert.Equal(t, []float64{5, 6, 1, 2}, s.Data)
	assert.Equal(t, 2, s.NObs())

	_, err = NewMatrix(4, []float64{1, 2, 3})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = NewMatrix(0, []float64{})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestTable(t *testing.T) {
	x, err := NewMatrix(2, []float64{1, 1, 2, 2, 3, 3})
	require.NoError(t, err)

	tbl, err := NewTable(
		Column{Name: "x", Data: x},
		Column{Name: "y", Data: Vector[string]{"a", "b", "c"}},
	)
	require.NoError(t, err)

	assert.Equal(t, 3, tbl.NObs())
	assert.Equal(t, []string{"x", "y"}, tbl.Names())
	assert.Equal(t, 2, tbl.Len())

	sub := tbl.Subset([]int{2, 1})
	assert.Equal(t, 2, sub.NObs())

	y, err := Col[Vector[string]](sub, "y")
	require.NoError(t, err)
	assert.Equal(t, Vector[string]{"c", "b"}, y)

	sx, err := Col[Matrix[float64]](sub, "x")
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 3, 2, 2}, sx.Data)

	_, err = Col[Vector[int]](sub, "y")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = Col[Vector[string]](sub, "z")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestTableValidation(t *testing.T) {
	tests := []struct {
		name string
		cols []Column
	}{
		{"empty", nil},
		{"unnamed", []Column{{Name: "", Data: Vector[int]{1}}}},
		{"duplicate", []Column{{Name: "a", Data: Vector[int]{1}}, {Name: "a", Data: Vector[int]{2}}}},
		{"nil member", []Column{{Name: "a", Data: nil}}},
		{"length mismatch", []Column{{Name: "a", Data: Vector[int]{1, 2}}, {Name: "b", Data: Vector[int]{1}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTable(tt.cols...)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestTuple(t *testing.T) {
	tbl, err := NewTuple(Vector[int]{1, 2, 3}, Vector[bool]{true, false, true})
	require.NoError(t, err)

	assert.Equal(t, []string{"0", "1"}, tbl.Names())

	sub := tbl.Subset([]int{1})
	assert.Equal(t, Vector[bool]{false}, sub.At(1))
}
