package types

import (
	"sort"
	"time"
)

// Snapshot is a fully loaded snapshot table: the product list plus every observed row.
// A Snapshot is treated as immutable once returned by the loader.
type Snapshot struct {
	// Products lists the product flag columns in input order
	Products []string `json:"products"`

	// Rows holds the observations in input order
	Rows []SnapshotRow `json:"rows"`

	// NullsFilled counts null product cells replaced by 0, per product
	NullsFilled map[string]int `json:"nulls_filled,omitempty"`
}

// ProductIndex returns the flag position of the named product, or -1.
func (s *Snapshot) ProductIndex(name string) int {
	for i, p := range s.Products {
		if p == name {
			return i
		}
	}
	return -1
}

// Partitions returns the distinct partition dates in chronological order.
func (s *Snapshot) Partitions() []time.Time {
	seen := make(map[time.Time]struct{})
	var out []time.Time
	for _, r := range s.Rows {
		if _, ok := seen[r.Partition]; ok {
			continue
		}
		seen[r.Partition] = struct{}{}
		out = append(out, r.Partition)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// Customers returns the distinct customer ids in first-seen order.
func (s *Snapshot) Customers() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, r := range s.Rows {
		if _, ok := seen[r.CustomerID]; ok {
			continue
		}
		seen[r.CustomerID] = struct{}{}
		out = append(out, r.CustomerID)
	}
	return out
}

// Len returns the number of rows.
func (s *Snapshot) Len() int {
	return len(s.Rows)
}

// FirstNonBinary locates the first flag that is neither 0 nor 1, scanning rows
// in input order. ok is false when every flag is binary.
func (s *Snapshot) FirstNonBinary() (row, product int, ok bool) {
	for i, r := range s.Rows {
		for k, f := range r.Flags {
			if f != 0 && f != 1 {
				return i, k, true
			}
		}
	}
	return 0, 0, false
}
