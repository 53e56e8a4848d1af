package report

import (
	"github.com/easymoney/easymoney-bi/internal/analytics/adoption"
	"github.com/easymoney/easymoney-bi/internal/analytics/growth"
	"github.com/easymoney/easymoney-bi/internal/analytics/history"
	"github.com/easymoney/easymoney-bi/internal/analytics/tenure"
)

// Output table names. Each becomes <name>.csv and one workbook sheet.
const (
	TableTenure        = "nivel_permanencia"
	TableBuckets       = "region_permanencia"
	TableMonths        = "promedio_permanencia"
	TableHistory       = "valoracion_clientes"
	TableGrowth        = "informacion_clientes_con_producto"
	TableActive        = "clientes_activos"
	TableInactive      = "clientes_no_activos"
	TableCustomerTypes = "tipos_clientes"
	TableContractIndex = "indice_contratacion"
	TableProducts      = "lista_productos"
)

// TenureTable lists one tenure record per customer.
func TenureTable(records []tenure.Record) Table {
	t := Table{Name: TableTenure, Header: []string{"pk_cid", "num_months", "permanence_score", "bucket"}}
	for _, r := range records {
		t.Rows = append(t.Rows, []interface{}{r.CustomerID, r.MonthsPresent, r.Score, string(r.Bucket)})
	}
	return t
}

// BucketTable is the share of classified customers per tenure bucket.
func BucketTable(shares []tenure.Share) Table {
	t := Table{Name: TableBuckets, Header: []string{"bucket", "range", "customers", "share"}}
	for _, s := range shares {
		t.Rows = append(t.Rows, []interface{}{s.Key, s.Label, s.Customers, s.Share})
	}
	return t
}

// MonthsTable is the share of customers per months-present value.
func MonthsTable(shares []tenure.Share) Table {
	t := Table{Name: TableMonths, Header: []string{"num_months", "customers", "share"}}
	for _, s := range shares {
		t.Rows = append(t.Rows, []interface{}{s.Key, s.Customers, s.Share})
	}
	return t
}

// HistoryTable lists one evaluation per (customer, product).
func HistoryTable(records []history.Record) Table {
	t := Table{Name: TableHistory, Header: []string{
		"pk_cid", "product", "num_months", "num_months_up",
		"max_permanence_ratio", "permanence_ratio", "losses_ratio", "case",
	}}
	for _, r := range records {
		t.Rows = append(t.Rows, []interface{}{
			r.CustomerID, r.Product, r.MonthsObserved, r.MonthsActive,
			r.LongestStreakRatio, r.ActiveRatio, r.InactiveRatio, string(r.Case),
		})
	}
	return t
}

// GrowthTable is the month-over-month adoption and growth series.
func GrowthTable(records []growth.Record) Table {
	t := Table{Name: TableGrowth, Header: []string{
		"pk_partition", "numero_clientes", "nuevos_clientes", "productos_contratados",
		"nuevos_productos", "producto_cliente_ratio", "crecimiento_clientes",
		"crecimiento_productos", "nuevos_producto_cliente_ratio",
	}}
	for _, r := range records {
		t.Rows = append(t.Rows, []interface{}{
			r.Partition, r.NumeroClientes, r.NuevosClientes, r.ProductosContratados,
			r.NuevosProductos, r.ProductoClienteRatio, r.CrecimientoClientes,
			r.CrecimientoProductos, r.NuevosProductoClienteRatio,
		})
	}
	return t
}

// ActiveTable and InactiveTable have one row per partition and one column per product.
func ActiveTable(agg *growth.Aggregates) Table {
	return monthlyTable(TableActive, agg, func(m growth.MonthlyAggregate) []int { return m.Active })
}

func InactiveTable(agg *growth.Aggregates) Table {
	return monthlyTable(TableInactive, agg, func(m growth.MonthlyAggregate) []int { return m.Inactive })
}

func monthlyTable(name string, agg *growth.Aggregates, counts func(growth.MonthlyAggregate) []int) Table {
	t := Table{Name: name, Header: append([]string{"pk_partition"}, agg.Products...)}
	for _, m := range agg.Months {
		row := make([]interface{}, 0, len(agg.Products)+1)
		row = append(row, m.Partition)
		for _, n := range counts(m) {
			row = append(row, n)
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

// CustomerTypesTable splits (customer, product) pairs into contracted and not contracted.
func CustomerTypesTable(records []history.Record) Table {
	contracted, notContracted := history.Split(records)
	return Table{
		Name:   TableCustomerTypes,
		Header: []string{"metric", "value"},
		Rows: [][]interface{}{
			{"clientes_con_producto", len(history.CustomersWithProducts(records))},
			{"productos_contratados", len(contracted)},
			{"productos_no_contratados", len(notContracted)},
		},
	}
}

// ContractIndexTable has one row per product: the general rate, then one column
// per year and one per month.
func ContractIndexTable(index []adoption.Index) Table {
	t := Table{Name: TableContractIndex, Header: []string{"product", "total"}}
	if len(index) > 0 {
		for _, r := range index[0].ByYear {
			t.Header = append(t.Header, r.Key)
		}
		for _, r := range index[0].ByMonth {
			t.Header = append(t.Header, r.Key)
		}
	}
	for _, idx := range index {
		row := make([]interface{}, 0, len(t.Header))
		row = append(row, idx.Product, idx.General)
		for _, r := range idx.ByYear {
			row = append(row, r.Value)
		}
		for _, r := range idx.ByMonth {
			row = append(row, r.Value)
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

// ProductsTable lists the analysed products.
func ProductsTable(products []string) Table {
	t := Table{Name: TableProducts, Header: []string{"product"}}
	for _, p := range products {
		t.Rows = append(t.Rows, []interface{}{p})
	}
	return t
}
