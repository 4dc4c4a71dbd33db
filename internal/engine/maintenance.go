package engine

import (
	"context"
	"errors"
	"time"

	"github.com/lazypower/interest/internal/graph"
	"github.com/lazypower/interest/internal/metrics"
	"github.com/lazypower/interest/internal/scoring"
)

// DecayReport counts what a decay pass changed.
type DecayReport struct {
	Users   int `json:"users"`
	Changed int `json:"changed"`
	Removed int `json:"removed"`
}

// DecayUser applies decay to userID's stored scores and writes the result.
func (e *Engine) DecayUser(ctx context.Context, userID string) (DecayReport, error) {
	unlock := e.users.Lock(userID)
	defer unlock()

	stored, err := e.DB.UserScores(ctx, userID)
	if err != nil {
		return DecayReport{}, err
	}
	res := e.decay.Decay(stored, e.Now())

	byTopic := make(map[string]int, len(res.Scores))
	for i, s := range res.Scores {
		byTopic[s.Topic] = i
	}
	upserts := make([]scoring.TopicScore, 0, len(res.Changed))
	for _, t := range res.Changed {
		upserts = append(upserts, res.Scores[byTopic[t]])
	}
	if err := e.DB.SaveScores(ctx, userID, upserts, res.Removed); err != nil {
		return DecayReport{}, err
	}

	metrics.AddDecayed("changed", len(res.Changed))
	metrics.AddDecayed("removed", len(res.Removed))
	return DecayReport{Users: 1, Changed: len(res.Changed), Removed: len(res.Removed)}, nil
}

// DecayAll runs DecayUser for every user with scores. A failing user does
// not stop the others.
func (e *Engine) DecayAll(ctx context.Context) (DecayReport, error) {
	users, err := e.DB.UsersWithScores(ctx)
	if err != nil {
		return DecayReport{}, err
	}
	var total DecayReport
	var errs []error
	for _, u := range users {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		r, err := e.DecayUser(ctx, u)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		total.Users++
		total.Changed += r.Changed
		total.Removed += r.Removed
	}
	return total, errors.Join(errs...)
}

// MaintainGraph decays and prunes topic relationships.
func (e *Engine) MaintainGraph(ctx context.Context) (graph.MaintenanceResult, error) {
	return e.Graph.Decay(ctx)
}

func (e *Engine) maintain() {
	ctx := context.Background()
	if r, err := e.DecayAll(ctx); err != nil {
		e.log.Error("score decay", "error", err)
	} else if r.Changed > 0 || r.Removed > 0 {
		e.log.Info("score decay", "users", r.Users, "changed", r.Changed, "removed", r.Removed)
	}
	if _, err := e.MaintainGraph(ctx); err != nil {
		e.log.Error("relationship decay", "error", err)
	}
}

// StartMaintenance runs score decay and relationship maintenance once in the
// background and then every Engine.MaintenanceInterval until Stop.
func (e *Engine) StartMaintenance() {
	interval := e.cfg.Engine.MaintenanceInterval
	if interval <= 0 {
		interval = 24 * time.Hour
	}

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.maintain()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				e.maintain()
			case <-e.stopCh:
				return
			}
		}
	}()
}

// Stop shuts down the engine's background goroutines and waits for them.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() { close(e.stopCh) })
	e.wg.Wait()
}
