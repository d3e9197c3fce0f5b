// Package optim tunes integrator and solver parameters by exhaustive search.
package optim

import (
	"context"
	"math"
	"sort"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"

	"github.com/san-kum/stepsol/internal/config"
	"github.com/san-kum/stepsol/internal/experiment"
)

var setters = map[string]func(*config.Config, float64){
	"dt":         func(c *config.Config, v float64) { c.Dt = v },
	"rho":        func(c *config.Config, v float64) { c.Rho = v },
	"tau":        func(c *config.Config, v float64) { c.Tau = v },
	"tol":        func(c *config.Config, v float64) { c.Tol = v },
	"deriv_coef": func(c *config.Config, v float64) { c.Derivatives.Coef = v },
}

// Parameters lists the names a grid may vary.
func Parameters() []string {
	names := make([]string, 0, len(setters))
	for n := range setters {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

type Param struct {
	Name   string
	Values []float64
}

type GridSearch struct {
	params []Param
	reg    *experiment.Registry
	logger log.Logger
}

func NewGridSearch(reg *experiment.Registry, logger log.Logger, params ...Param) (*GridSearch, error) {
	for _, p := range params {
		if _, ok := setters[p.Name]; !ok {
			return nil, errors.Errorf("unknown parameter %q (available: %v)", p.Name, Parameters())
		}
		if len(p.Values) == 0 {
			return nil, errors.Errorf("parameter %q has no values", p.Name)
		}
	}
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &GridSearch{params: params, reg: reg, logger: logger}, nil
}

// Outcome is the best point of a search.
type Outcome struct {
	Params map[string]float64
	Value  float64
	// Evaluated counts the points that ran to completion.
	Evaluated int
	Failed    int
}

// Search runs base at every point of the grid and returns the point with
// the smallest metric. Points whose run fails or lacks the metric are
// skipped.
func (g *GridSearch) Search(ctx context.Context, base *config.Config, metric string) (*Outcome, error) {
	out := &Outcome{Value: math.Inf(1)}
	if err := g.searchRecursive(ctx, 0, base, make(map[string]float64), metric, out); err != nil {
		return nil, err
	}
	if out.Params == nil {
		return out, errors.Errorf("no grid point produced %q", metric)
	}
	return out, nil
}

func (g *GridSearch) searchRecursive(ctx context.Context, depth int, base *config.Config, current map[string]float64, metric string, out *Outcome) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if depth == len(g.params) {
		val, err := g.evaluate(ctx, base, current, metric)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			out.Failed++
			level.Debug(g.logger).Log("msg", "grid point failed", "params", format(current), "err", err)
			return nil
		}
		out.Evaluated++
		if val < out.Value {
			out.Value = val
			out.Params = make(map[string]float64, len(current))
			for k, v := range current {
				out.Params[k] = v
			}
		}
		return nil
	}

	p := g.params[depth]
	for _, val := range p.Values {
		next := make(map[string]float64, len(current)+1)
		for k, v := range current {
			next[k] = v
		}
		next[p.Name] = val
		if err := g.searchRecursive(ctx, depth+1, base, next, metric, out); err != nil {
			return err
		}
	}
	return nil
}

func (g *GridSearch) evaluate(ctx context.Context, base *config.Config, params map[string]float64, metric string) (float64, error) {
	cfg := *base
	for name, v := range params {
		setters[name](&cfg, v)
	}
	if err := cfg.Validate(); err != nil {
		return 0, err
	}
	exp := experiment.New(&cfg, g.reg, experiment.WithLogger(g.logger))
	if err := exp.Setup(); err != nil {
		return 0, err
	}
	res, err := exp.Run(ctx)
	if err != nil {
		return 0, err
	}
	val, ok := res.Metrics[metric]
	if !ok || math.IsNaN(val) {
		return 0, errors.Errorf("metric %q not recorded", metric)
	}
	return val, nil
}

func format(params map[string]float64) []interface{} {
	kv := make([]interface{}, 0, 2*len(params))
	for _, name := range Parameters() {
		if v, ok := params[name]; ok {
			kv = append(kv, name, v)
		}
	}
	return kv
}
