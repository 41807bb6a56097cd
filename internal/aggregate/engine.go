// Confluence - Composite API Gateway for Users, Events and Feed Services
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/confluence

// Package aggregate runs named branches concurrently and collects one
// outcome per branch.
//
// Run always waits for every branch. It never cancels siblings on failure:
// what a failure means (fail the request, or return partial data) is
// decided by the caller from the Result.
package aggregate

import (
	"context"
	"fmt"
	"runtime/debug"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/tomtom215/confluence/internal/logging"
	"github.com/tomtom215/confluence/internal/metrics"
)

// Branch is one unit of fan-out work.
type Branch struct {
	Name string
	Fn   func(ctx context.Context) (any, error)
}

// Outcome is the result of one branch.
type Outcome struct {
	Name     string
	Value    any
	Err      error
	Duration time.Duration
}

// Result holds exactly one Outcome per branch name.
type Result struct {
	outcomes map[string]Outcome
	order    []string
}

// Run executes branches concurrently and waits for all of them. Branch
// contexts keep ctx's values but not its cancellation. Duplicate names
// panic.
func Run(ctx context.Context, branches ...Branch) Result {
	res := Result{
		outcomes: make(map[string]Outcome, len(branches)),
		order:    make([]string, 0, len(branches)),
	}
	for _, b := range branches {
		if _, dup := res.outcomes[b.Name]; dup {
			panic(fmt.Sprintf("aggregate: duplicate branch name %q", b.Name))
		}
		res.outcomes[b.Name] = Outcome{Name: b.Name}
		res.order = append(res.order, b.Name)
	}

	branchCtx := context.WithoutCancel(ctx)

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for _, b := range branches {
		wg.Add(1)
		go func(b Branch) {
			defer wg.Done()
			out := runBranch(branchCtx, b)
			mu.Lock()
			res.outcomes[b.Name] = out
			mu.Unlock()
		}(b)
	}
	wg.Wait()

	return res
}

func runBranch(ctx context.Context, b Branch) (out Outcome) {
	out.Name = b.Name
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			out.Value = nil
			out.Err = fmt.Errorf("branch %s panicked: %v", b.Name, r)
			logging.Ctx(ctx).Error().
				Str("branch", b.Name).
				Str("stack", string(debug.Stack())).
				Msgf("Aggregation branch panicked: %v", r)
		}
		out.Duration = time.Since(start)
		metrics.RecordAggregationBranch(b.Name, out.Duration, out.Err)
	}()

	out.Value, out.Err = b.Fn(ctx)
	return out
}

// Outcome returns the outcome for name.
func (r Result) Outcome(name string) (Outcome, bool) {
	o, ok := r.outcomes[name]
	return o, ok
}

// Names returns branch names in submission order.
func (r Result) Names() []string {
	return append([]string(nil), r.order...)
}

// Len returns the number of outcomes.
func (r Result) Len() int { return len(r.outcomes) }

// Err returns the error of branch name, if any.
func (r Result) Err(name string) error {
	return r.outcomes[name].Err
}

// OK reports whether every branch succeeded.
func (r Result) OK() bool {
	for _, o := range r.outcomes {
		if o.Err != nil {
			return false
		}
	}
	return true
}

// Failures maps each failed branch name to its error message.
func (r Result) Failures() map[string]string {
	failed := make(map[string]string)
	for name, o := range r.outcomes {
		if o.Err != nil {
			failed[name] = o.Err.Error()
		}
	}
	return failed
}

// FailureSummary renders failures as {'name': 'message', ...} with names
// sorted.
func (r Result) FailureSummary() string {
	failed := r.Failures()
	names := make([]string, 0, len(failed))
	for name := range failed {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteByte('{')
	for i, name := range names {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "'%s': '%s'", name, failed[name])
	}
	b.WriteByte('}')
	return b.String()
}

// Value returns branch name's value as T. ok is false if the branch failed,
// is unknown, or returned a different type.
func Value[T any](r Result, name string) (v T, ok bool) {
	o, found := r.outcomes[name]
	if !found || o.Err != nil {
		return v, false
	}
	v, ok = o.Value.(T)
	return v, ok
}
