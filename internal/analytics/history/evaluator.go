package history

import (
	"context"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"github.com/spaolacci/murmur3"
	"golang.org/x/sync/errgroup"

	apperrors "github.com/easymoney/easymoney-bi/internal/errors"
	"github.com/easymoney/easymoney-bi/internal/logger"
	"github.com/easymoney/easymoney-bi/pkg/types"
)

// Evaluator runs Evaluate over every (customer, product) pair of a snapshot in parallel.
type Evaluator struct {
	workers       int
	progressEvery int
	log           *logger.Logger
}

// NewEvaluator creates an evaluator. workers < 1 is treated as 1;
// progressEvery <= 0 disables progress logging.
func NewEvaluator(workers, progressEvery int, log *logger.Logger) *Evaluator {
	if workers < 1 {
		workers = 1
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Evaluator{
		workers:       workers,
		progressEvery: progressEvery,
		log:           log,
	}
}

// EvaluateAll evaluates the given products (all snapshot products when empty) for
// every customer. Records are ordered by customer first-seen order, then by product
// order, whatever the worker count.
func (e *Evaluator) EvaluateAll(ctx context.Context, snap *types.Snapshot, products []string) ([]Record, error) {
	if len(products) == 0 {
		products = snap.Products
	}
	cols := make([]int, len(products))
	for k, p := range products {
		idx := snap.ProductIndex(p)
		if idx < 0 {
			return nil, apperrors.NewValidationError(apperrors.CodeUnknownProduct,
				fmt.Sprintf("product %q is not in the snapshot", p))
		}
		cols[k] = idx
	}

	customers, histories := groupByCustomer(snap)
	results := make([]Record, len(customers)*len(products))

	shards := make([][]int, e.workers)
	for i, id := range customers {
		s := murmur3.Sum32([]byte(id)) % uint32(e.workers)
		shards[s] = append(shards[s], i)
	}

	start := time.Now()
	total := len(customers)
	var done int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for _, shard := range shards {
		shard := shard
		if len(shard) == 0 {
			continue
		}
		g.Go(func() error {
			seq := make([]int8, 0, 32)
			for _, i := range shard {
				if err := gctx.Err(); err != nil {
					return err
				}
				rows := histories[i]
				for k, col := range cols {
					seq = seq[:0]
					for _, r := range rows {
						seq = append(seq, snap.Rows[r].Flags[col])
					}
					rec, err := Evaluate(seq)
					if err != nil {
						return fmt.Errorf("customer %s product %s: %w", customers[i], products[k], err)
					}
					rec.CustomerID = customers[i]
					rec.Product = products[k]
					results[i*len(products)+k] = rec
				}

				n := atomic.AddInt64(&done, 1)
				if e.progressEvery > 0 && n%int64(e.progressEvery) == 0 {
					e.log.Info("history evaluation progress",
						"customers_done", n,
						"customers_total", total,
						"elapsed", time.Since(start),
					)
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	e.log.Debug("history evaluation finished",
		"customers", total,
		"products", len(products),
		"workers", e.workers,
		"duration", time.Since(start),
	)
	return results, nil
}

// groupByCustomer returns customers in first-seen order and, for each, the
// indexes of its rows sorted by partition.
func groupByCustomer(snap *types.Snapshot) ([]string, [][]int) {
	index := make(map[string]int)
	var customers []string
	var histories [][]int
	for r, row := range snap.Rows {
		i, ok := index[row.CustomerID]
		if !ok {
			i = len(customers)
			index[row.CustomerID] = i
			customers = append(customers, row.CustomerID)
			histories = append(histories, nil)
		}
		histories[i] = append(histories[i], r)
	}
	for _, h := range histories {
		sort.SliceStable(h, func(a, b int) bool {
			return snap.Rows[h[a]].Partition.Before(snap.Rows[h[b]].Partition)
		})
	}
	return customers, histories
}
