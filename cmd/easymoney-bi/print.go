package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"

	"github.com/easymoney/easymoney-bi/internal/pipeline"
	"github.com/easymoney/easymoney-bi/internal/snapshot"
	"github.com/easymoney/easymoney-bi/pkg/types"
)

func printSummary(w io.Writer, object string, sum snapshot.Summary) {
	fmt.Fprintf(w, "Snapshot: %s\n", object)
	fmt.Fprintf(w, "  Rows:       %d\n", sum.Rows)
	fmt.Fprintf(w, "  Columns:    %d\n", sum.Columns)
	fmt.Fprintf(w, "  Customers:  %d\n", sum.Customers)
	fmt.Fprintf(w, "  Partitions: %d", sum.Partitions)
	if sum.Partitions > 0 {
		fmt.Fprintf(w, " (%s to %s)", sum.First.Format(types.PartitionLayout), sum.Last.Format(types.PartitionLayout))
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w)

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Product", "Active", "Activation Mean", "Nulls Filled"})
	for _, p := range sum.Products {
		table.Append([]string{
			p.Name,
			strconv.Itoa(p.Active),
			strconv.FormatFloat(p.ActivationMean, 'f', 4, 64),
			strconv.Itoa(p.NullsFilled),
		})
	}
	table.Render()
}

func printObjects(w io.Writer, objects []string) {
	if len(objects) == 0 {
		fmt.Fprintln(w, "No snapshots found")
		return
	}
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Snapshot"})
	for _, o := range objects {
		table.Append([]string{o})
	}
	table.Render()
}

func printResult(w io.Writer, res *pipeline.Result) {
	fmt.Fprintf(w, "Run %s: %d rows, %d customers, %d partitions, %d products\n\n",
		res.RunID, res.Snapshot.Len(), res.Matrix.Rows(), res.Matrix.Cols(), len(res.Snapshot.Products))

	buckets := tablewriter.NewWriter(w)
	buckets.SetHeader([]string{"Bucket", "Range", "Customers", "Share"})
	for _, s := range res.Buckets {
		buckets.Append([]string{s.Key, s.Label, strconv.Itoa(s.Customers), strconv.FormatFloat(s.Share, 'f', 4, 64)})
	}
	buckets.Render()
	fmt.Fprintln(w)

	index := tablewriter.NewWriter(w)
	index.SetHeader([]string{"Product", "Contract Index"})
	for _, idx := range res.ContractIndex {
		index.Append([]string{idx.Product, strconv.FormatFloat(idx.General, 'f', 4, 64)})
	}
	index.Render()
	fmt.Fprintln(w)

	files := tablewriter.NewWriter(w)
	files.SetHeader([]string{"Table", "File", "Rows"})
	for _, f := range res.Manifest.Files {
		files.Append([]string{f.Table, f.File, strconv.Itoa(f.Rows)})
	}
	files.Render()

	if len(res.Uploaded) > 0 {
		fmt.Fprintf(w, "\nUploaded %d files\n", len(res.Uploaded))
	}
}
