package engine

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"
)

// RecordBatch records interactions for many users. Each user's events run
// in timestamp order on one goroutine; users run in parallel up to
// Engine.Workers. A failing event only affects its own Result.
func (e *Engine) RecordBatch(ctx context.Context, batch []Interaction) []Result {
	results := make([]Result, len(batch))

	byUser := make(map[string][]int)
	var users []string
	for i, in := range batch {
		if _, ok := byUser[in.UserID]; !ok {
			users = append(users, in.UserID)
		}
		byUser[in.UserID] = append(byUser[in.UserID], i)
	}

	var g errgroup.Group
	if e.cfg.Engine.Workers > 0 {
		g.SetLimit(e.cfg.Engine.Workers)
	}
	for _, user := range users {
		idx := byUser[user]
		sort.SliceStable(idx, func(a, b int) bool {
			return batch[idx[a]].Timestamp < batch[idx[b]].Timestamp
		})
		g.Go(func() error {
			for _, i := range idx {
				if err := ctx.Err(); err != nil {
					res := Result{InteractionID: batch[i].ID, UserID: batch[i].UserID}
					res.advance(Received)
					res.reject(err)
					results[i] = res
					continue
				}
				// Errors are carried in the Result.
				results[i], _ = e.Record(ctx, batch[i])
			}
			return nil
		})
	}
	_ = g.Wait()

	e.log.Info("batch recorded", "events", len(batch), "users", len(users))
	return results
}
