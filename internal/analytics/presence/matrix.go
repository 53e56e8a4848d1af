// Package presence builds the customer × partition presence matrix.
package presence

import (
	"sort"
	"time"

	"github.com/easymoney/easymoney-bi/pkg/types"
)

// Matrix is a dense customer × partition 0/1 table. Row i belongs to
// Customers[i] (first-seen order), column j to Partitions[j] (chronological).
type Matrix struct {
	Customers  []string
	Partitions []time.Time
	cells      []uint8
}

// Build marks every observed (customer, partition) pair. Empty input gives an empty matrix.
func Build(rows []types.SnapshotRow) *Matrix {
	custIdx := make(map[string]int)
	partSet := make(map[time.Time]struct{})
	m := &Matrix{}

	for _, r := range rows {
		if _, ok := custIdx[r.CustomerID]; !ok {
			custIdx[r.CustomerID] = len(m.Customers)
			m.Customers = append(m.Customers, r.CustomerID)
		}
		if _, ok := partSet[r.Partition]; !ok {
			partSet[r.Partition] = struct{}{}
			m.Partitions = append(m.Partitions, r.Partition)
		}
	}
	sort.Slice(m.Partitions, func(i, j int) bool { return m.Partitions[i].Before(m.Partitions[j]) })

	partIdx := make(map[time.Time]int, len(m.Partitions))
	for j, p := range m.Partitions {
		partIdx[p] = j
	}

	cols := len(m.Partitions)
	m.cells = make([]uint8, len(m.Customers)*cols)
	for _, r := range rows {
		m.cells[custIdx[r.CustomerID]*cols+partIdx[r.Partition]] = 1
	}
	return m
}

// Rows returns the number of customers.
func (m *Matrix) Rows() int { return len(m.Customers) }

// Cols returns the number of partitions.
func (m *Matrix) Cols() int { return len(m.Partitions) }

// Present reports whether customer i appears in partition j.
func (m *Matrix) Present(i, j int) bool {
	return m.cells[i*m.Cols()+j] == 1
}

// RowSum returns the number of partitions customer i appears in.
func (m *Matrix) RowSum(i int) int {
	cols := m.Cols()
	n := 0
	for _, c := range m.cells[i*cols : (i+1)*cols] {
		n += int(c)
	}
	return n
}

// ColumnTotals returns the number of customers present in each partition.
func (m *Matrix) ColumnTotals() []int {
	cols := m.Cols()
	totals := make([]int, cols)
	for i := 0; i < m.Rows(); i++ {
		for j, c := range m.cells[i*cols : (i+1)*cols] {
			totals[j] += int(c)
		}
	}
	return totals
}

// Row returns a copy of customer i's presence flags.
func (m *Matrix) Row(i int) []uint8 {
	cols := m.Cols()
	return append([]uint8(nil), m.cells[i*cols:(i+1)*cols]...)
}

// Equal reports whether two matrices have identical labels and cells.
func (m *Matrix) Equal(o *Matrix) bool {
	if m.Rows() != o.Rows() || m.Cols() != o.Cols() {
		return false
	}
	for i := range m.Customers {
		if m.Customers[i] != o.Customers[i] {
			return false
		}
	}
	for j := range m.Partitions {
		if !m.Partitions[j].Equal(o.Partitions[j]) {
			return false
		}
	}
	for k := range m.cells {
		if m.cells[k] != o.cells[k] {
			return false
		}
	}
	return true
}
