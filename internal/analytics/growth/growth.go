package growth

import (
	"fmt"
	"time"

	apperrors "github.com/easymoney/easymoney-bi/internal/errors"
	"github.com/easymoney/easymoney-bi/pkg/types"
)

// Input is one period of the adoption series.
type Input struct {
	Partition     time.Time
	Customers     int
	ProductActive []int
}

// Record is one period of the adoption and growth series. Ratios with a zero
// denominator carry the IEEE result (NaN or ±Inf), except
// NuevosProductoClienteRatio which is 0 when there are no new customers.
type Record struct {
	Partition                  time.Time
	NumeroClientes             int
	NuevosClientes             int
	ProductosContratados       int
	NuevosProductos            int
	ProductoClienteRatio       float64
	CrecimientoClientes        float64
	CrecimientoProductos       float64
	NuevosProductoClienteRatio float64
}

// Compute derives the series period by period. Partitions must be strictly increasing.
func Compute(inputs []Input) ([]Record, error) {
	out := make([]Record, len(inputs))
	for t, in := range inputs {
		if t > 0 && !inputs[t-1].Partition.Before(in.Partition) {
			return nil, apperrors.NewValidationError(apperrors.CodeUnorderedSeries,
				fmt.Sprintf("partition %s does not follow %s",
					in.Partition.Format(types.PartitionLayout),
					inputs[t-1].Partition.Format(types.PartitionLayout)))
		}

		productos := 0
		for _, n := range in.ProductActive {
			productos += n
		}

		rec := Record{
			Partition:            in.Partition,
			NumeroClientes:       in.Customers,
			ProductosContratados: productos,
			ProductoClienteRatio: div(productos, in.Customers),
		}

		if t > 0 {
			prev := out[t-1]
			rec.NuevosClientes = rec.NumeroClientes - prev.NumeroClientes
			rec.NuevosProductos = rec.ProductosContratados - prev.ProductosContratados
			rec.CrecimientoClientes = div(rec.NuevosClientes, prev.NumeroClientes)
			rec.CrecimientoProductos = div(rec.NuevosProductos, prev.ProductosContratados)
			if rec.NuevosClientes != 0 {
				rec.NuevosProductoClienteRatio = div(rec.NuevosProductos, rec.NuevosClientes)
			}
		}
		out[t] = rec
	}
	return out, nil
}

// Select recomputes the series counting only the selected products. Customer
// counts are unchanged; every product-derived field is rebuilt.
func Select(agg *Aggregates, selected []string) ([]Record, error) {
	cols := make([]int, len(selected))
	for k, name := range selected {
		cols[k] = -1
		for j, p := range agg.Products {
			if p == name {
				cols[k] = j
				break
			}
		}
		if cols[k] < 0 {
			return nil, apperrors.NewValidationError(apperrors.CodeUnknownProduct,
				fmt.Sprintf("product %q is not in the aggregates", name))
		}
	}

	inputs := make([]Input, len(agg.Months))
	for t, m := range agg.Months {
		active := make([]int, len(cols))
		for k, j := range cols {
			active[k] = m.Active[j]
		}
		inputs[t] = Input{Partition: m.Partition, Customers: m.Customers, ProductActive: active}
	}
	return Compute(inputs)
}

// div is float division without guarding zero denominators.
func div(a, b int) float64 {
	return float64(a) / float64(b)
}
