package presence

import (
	"fmt"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/easymoney/easymoney-bi/pkg/types"
)

func month(m int) time.Time {
	return time.Date(2018, time.January, 28, 0, 0, 0, 0, time.UTC).AddDate(0, m, 0)
}

func TestBuild_Basic(t *testing.T) {
	rows := []types.SnapshotRow{
		{CustomerID: "b", Partition: month(1)},
		{CustomerID: "a", Partition: month(0)},
		{CustomerID: "b", Partition: month(0)},
		{CustomerID: "c", Partition: month(2)},
	}

	m := Build(rows)
	if m.Rows() != 3 || m.Cols() != 3 {
		t.Fatalf("expected 3x3 matrix, got %dx%d", m.Rows(), m.Cols())
	}
	if m.Customers[0] != "b" || m.Customers[1] != "a" || m.Customers[2] != "c" {
		t.Errorf("customers should keep first-seen order, got %v", m.Customers)
	}
	for j := 1; j < m.Cols(); j++ {
		if !m.Partitions[j-1].Before(m.Partitions[j]) {
			t.Errorf("partitions not chronological: %v", m.Partitions)
		}
	}

	want := [][]bool{
		{true, true, false},
		{true, false, false},
		{false, false, true},
	}
	for i := range want {
		for j := range want[i] {
			if m.Present(i, j) != want[i][j] {
				t.Errorf("cell (%d,%d): got %v, want %v", i, j, m.Present(i, j), want[i][j])
			}
		}
	}

	if m.RowSum(0) != 2 || m.RowSum(1) != 1 || m.RowSum(2) != 1 {
		t.Errorf("unexpected row sums %d %d %d", m.RowSum(0), m.RowSum(1), m.RowSum(2))
	}
	totals := m.ColumnTotals()
	if totals[0] != 2 || totals[1] != 1 || totals[2] != 1 {
		t.Errorf("unexpected column totals %v", totals)
	}
}

func TestBuild_Empty(t *testing.T) {
	m := Build(nil)
	if m.Rows() != 0 || m.Cols() != 0 {
		t.Errorf("expected empty matrix, got %dx%d", m.Rows(), m.Cols())
	}
	if len(m.ColumnTotals()) != 0 {
		t.Error("expected no column totals")
	}
}

func TestRow_IsCopy(t *testing.T) {
	m := Build([]types.SnapshotRow{{CustomerID: "a", Partition: month(0)}})
	r := m.Row(0)
	r[0] = 0
	if !m.Present(0, 0) {
		t.Error("mutating Row result must not change the matrix")
	}
}

// genRows produces snapshot rows over up to 8 customers and 17 months without duplicates.
func genRows() gopter.Gen {
	return gen.SliceOf(gen.IntRange(0, 8*17-1)).Map(func(cells []int) []types.SnapshotRow {
		seen := make(map[int]bool)
		var rows []types.SnapshotRow
		for _, c := range cells {
			if seen[c] {
				continue
			}
			seen[c] = true
			rows = append(rows, types.SnapshotRow{
				CustomerID: fmt.Sprintf("c%d", c/17),
				Partition:  month(c % 17),
			})
		}
		return rows
	})
}

func TestProperty_PresenceMatrix(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("row sums lie in [0, columns]", prop.ForAll(
		func(rows []types.SnapshotRow) bool {
			m := Build(rows)
			for i := 0; i < m.Rows(); i++ {
				s := m.RowSum(i)
				if s < 0 || s > m.Cols() {
					return false
				}
			}
			return true
		},
		genRows(),
	))

	properties.Property("building twice yields identical matrices", prop.ForAll(
		func(rows []types.SnapshotRow) bool {
			return Build(rows).Equal(Build(rows))
		},
		genRows(),
	))

	properties.Property("cell count equals distinct observations", prop.ForAll(
		func(rows []types.SnapshotRow) bool {
			m := Build(rows)
			total := 0
			for _, c := range m.ColumnTotals() {
				total += c
			}
			return total == len(rows)
		},
		genRows(),
	))

	properties.TestingRun(t)
}
