package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"runtime"
	"sync"

	"github.com/shopspring/decimal"
)

var NoEvaluationsErr = errors.New("sweep produced no successful evaluations")

// ParamSpec describes one searchable strategy parameter.
type ParamSpec struct {
	Name string
	Min  float64
	Max  float64
	// Int restricts the parameter to whole values.
	Int bool
	// Step is the grid spacing for grid search. Ignored by random
	// search. Zero defaults to ten points across [Min, Max].
	Step float64
}

// StrategyFactory builds a strategy from one concrete parameter set.
// Returning an error marks the evaluation failed without aborting the
// sweep.
type StrategyFactory func(params map[string]float64) (Strategy, error)

// Objective ranks finished runs; higher is better.
type Objective func(*Result) float64

// SharpeObjective is the default ranking.
func SharpeObjective(r *Result) float64 {
	return r.SharpeRatio.InexactFloat64()
}

// Evaluation is one (parameters, result) pair in the sweep history.
type Evaluation struct {
	Params map[string]float64
	Result *Result
	Score  float64
	Err    error
}

// SweepResult is the outcome of one optimizer sweep. Failed
// evaluations stay in History but are excluded from ranking.
type SweepResult struct {
	Best     Evaluation
	History  []Evaluation
	Failures int
}

// Optimizer searches a parameter space by running many independent
// backtests. Every evaluation gets a fresh portfolio inside the
// engine, so evaluations parallelize safely across a worker pool.
type Optimizer struct {
	engine    *Engine
	cfg       Config
	objective Objective
	workers   int
}

func NewOptimizer(engine *Engine, cfg Config, objective Objective, workers int) *Optimizer {
	if objective == nil {
		objective = SharpeObjective
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Optimizer{engine: engine, cfg: cfg, objective: objective, workers: workers}
}

// GridSearch evaluates the full cartesian grid over the specs.
func (o *Optimizer) GridSearch(ctx context.Context, specs []ParamSpec, factory StrategyFactory) (*SweepResult, error) {
	grids := make([][]float64, len(specs))
	for i, spec := range specs {
		grids[i] = gridValues(spec)
	}

	var paramSets []map[string]float64
	var expand func(i int, cur map[string]float64)
	expand = func(i int, cur map[string]float64) {
		if i == len(specs) {
			set := make(map[string]float64, len(cur))
			for k, v := range cur {
				set[k] = v
			}
			paramSets = append(paramSets, set)
			return
		}
		for _, v := range grids[i] {
			cur[specs[i].Name] = v
			expand(i+1, cur)
		}
	}
	expand(0, make(map[string]float64, len(specs)))

	return o.sweep(ctx, paramSets, factory)
}

// RandomSearch draws n uniform samples from the parameter space. The
// seed makes the draw, and therefore the whole sweep, reproducible.
func (o *Optimizer) RandomSearch(ctx context.Context, specs []ParamSpec, factory StrategyFactory, n int, seed int64) (*SweepResult, error) {
	// All parameter sets are drawn up front from a single source so
	// worker scheduling cannot perturb the sample.
	rng := rand.New(rand.NewSource(seed))
	paramSets := make([]map[string]float64, 0, n)
	for i := 0; i < n; i++ {
		set := make(map[string]float64, len(specs))
		for _, spec := range specs {
			v := spec.Min + rng.Float64()*(spec.Max-spec.Min)
			if spec.Int {
				v = math.Round(v)
			}
			set[spec.Name] = v
		}
		paramSets = append(paramSets, set)
	}
	return o.sweep(ctx, paramSets, factory)
}

// sweep runs each parameter set as an isolated engine run on a worker
// pool. Cancellation is cooperative between runs: workers drain their
// queue once the context is done, leaving the remaining evaluations
// unrun but already-finished history intact.
func (o *Optimizer) sweep(ctx context.Context, paramSets []map[string]float64, factory StrategyFactory) (*SweepResult, error) {
	if len(paramSets) == 0 {
		return nil, NoEvaluationsErr
	}

	type job struct {
		index  int
		params map[string]float64
	}

	jobCh := make(chan job, len(paramSets))
	history := make([]Evaluation, len(paramSets))

	var wg sync.WaitGroup
	for w := 0; w < o.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobCh {
				if err := ctx.Err(); err != nil {
					history[j.index] = Evaluation{Params: j.params, Err: err}
					continue
				}
				history[j.index] = o.evaluate(ctx, j.params, factory)
			}
		}()
	}

	for i, params := range paramSets {
		jobCh <- job{index: i, params: params}
	}
	close(jobCh)
	wg.Wait()

	result := &SweepResult{History: history}
	best := -1
	for i, ev := range history {
		if ev.Err != nil {
			result.Failures++
			continue
		}
		if best == -1 || ev.Score > history[best].Score {
			best = i
		}
	}
	if best == -1 {
		return nil, fmt.Errorf("%w: %d evaluations failed", NoEvaluationsErr, result.Failures)
	}
	result.Best = history[best]

	slog.Info("sweep complete",
		"evaluations", len(history),
		"failures", result.Failures,
		"best_score", decimal.NewFromFloat(result.Best.Score),
	)
	return result, nil
}

func (o *Optimizer) evaluate(ctx context.Context, params map[string]float64, factory StrategyFactory) Evaluation {
	ev := Evaluation{Params: params}

	strat, err := factory(params)
	if err != nil {
		ev.Err = fmt.Errorf("build strategy: %w", err)
		return ev
	}

	result, err := o.engine.Run(ctx, strat, o.cfg)
	if err != nil {
		ev.Err = err
		return ev
	}

	ev.Result = result
	ev.Score = o.objective(result)
	return ev
}

func gridValues(spec ParamSpec) []float64 {
	step := spec.Step
	if step <= 0 {
		step = (spec.Max - spec.Min) / 9
	}
	if step <= 0 {
		return []float64{spec.Min}
	}

	var values []float64
	for v := spec.Min; v <= spec.Max+step/1e9; v += step {
		x := v
		if spec.Int {
			x = math.Round(x)
			if len(values) > 0 && values[len(values)-1] == x {
				continue
			}
		}
		values = append(values, x)
	}
	return values
}
