// Package types provides the snapshot data types shared by the loader and the analytics packages.
package types

import "time"

// PartitionLayout is the calendar-date layout used for partition dates in inputs and reports.
const PartitionLayout = "2006-01-02"

// SnapshotRow is one (customer, month) observation of the product portfolio.
type SnapshotRow struct {
	// CustomerID identifies the customer (pk_cid)
	CustomerID string `json:"customer_id"`

	// Partition is the snapshot date, UTC at day granularity (pk_partition)
	Partition time.Time `json:"partition"`

	// Flags holds one 0/1 activation flag per product, aligned with Snapshot.Products
	Flags []int8 `json:"flags"`
}

// Key returns the identity of the row.
func (r SnapshotRow) Key() RowKey {
	return RowKey{CustomerID: r.CustomerID, Partition: r.Partition}
}

// RowKey is the unique identity of a snapshot row.
type RowKey struct {
	CustomerID string
	Partition  time.Time
}
