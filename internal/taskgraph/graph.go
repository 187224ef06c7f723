// Package taskgraph runs a directed acyclic graph of file-producing
// tasks. Each task carries a signature over its name, parameters and
// input files; tasks whose signature is already recorded and whose
// target files are still on disk are skipped, so an interrupted run
// picks up where it left off.
package taskgraph

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/testacc-art/invest/internal/fsutil"
	"github.com/testacc-art/invest/internal/timeutil"
)

// Task is one unit of work in the graph.
type Task struct {
	// Name identifies the task in logs and the registry.
	Name string

	// Params is a stable encoding of every knob that changes the
	// task's output.
	Params string

	// Inputs are files whose contents feed the task. Their path, size
	// and modification time go into the signature.
	Inputs []string

	// Targets are the files the task writes.
	Targets []string

	// Deps must complete before the task runs.
	Deps []*Task

	// Fn does the work.
	Fn func(ctx context.Context) error
}

// Graph is a set of tasks with dependencies.
type Graph struct {
	log     zerolog.Logger
	reg     *Registry
	fs      fsutil.FileSystem
	clock   timeutil.Clock
	workers int
	tasks   []*Task
	byName  map[string]*Task
}

// New creates an empty graph. workers limits how many tasks run at
// once; 0 runs everything on the calling goroutine in insertion order.
func New(log zerolog.Logger, reg *Registry, workers int) *Graph {
	return &Graph{
		log:     log,
		reg:     reg,
		fs:      fsutil.OSFileSystem{},
		clock:   timeutil.RealClock{},
		workers: workers,
		byName:  make(map[string]*Task),
	}
}

// Add registers a task. Dependencies must already be in the graph,
// which keeps it acyclic and makes insertion order a valid execution
// order.
func (g *Graph) Add(t *Task) error {
	if t.Name == "" {
		return errors.New("task has no name")
	}
	if t.Fn == nil {
		return fmt.Errorf("task %s has no function", t.Name)
	}
	if _, ok := g.byName[t.Name]; ok {
		return fmt.Errorf("duplicate task %s", t.Name)
	}
	for _, dep := range t.Deps {
		if g.byName[dep.Name] != dep {
			return fmt.Errorf("task %s depends on %s, which is not in the graph", t.Name, dep.Name)
		}
	}
	g.byName[t.Name] = t
	g.tasks = append(g.tasks, t)
	return nil
}

// Run executes every task, honoring dependencies. The first failure
// stops the run; with workers > 0, tasks already running are allowed
// to see the canceled context.
func (g *Graph) Run(ctx context.Context) error {
	if g.workers <= 0 {
		for _, t := range g.tasks {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := g.runTask(ctx, t); err != nil {
				return err
			}
		}
		return nil
	}

	eg, ctx := errgroup.WithContext(ctx)
	sem := make(chan struct{}, g.workers)
	done := make(map[*Task]chan struct{}, len(g.tasks))
	for _, t := range g.tasks {
		done[t] = make(chan struct{})
	}
	for _, t := range g.tasks {
		t := t
		eg.Go(func() error {
			for _, dep := range t.Deps {
				select {
				case <-done[dep]:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				return ctx.Err()
			}
			defer func() { <-sem }()
			if err := g.runTask(ctx, t); err != nil {
				return err
			}
			close(done[t])
			return nil
		})
	}
	return eg.Wait()
}

func (g *Graph) runTask(ctx context.Context, t *Task) error {
	key, err := g.signature(t)
	if err != nil {
		return fmt.Errorf("task %s: %w", t.Name, err)
	}
	seen, err := g.reg.Done(ctx, key)
	if err != nil {
		return fmt.Errorf("task %s: %w", t.Name, err)
	}
	if seen && g.targetsExist(t) {
		g.log.Debug().Str("task", t.Name).Msg("targets up to date, skipping")
		return nil
	}

	start := g.clock.Now()
	g.log.Debug().Str("task", t.Name).Msg("running task")
	if err := t.Fn(ctx); err != nil {
		return fmt.Errorf("task %s: %w", t.Name, err)
	}
	for _, target := range t.Targets {
		if !g.fs.Exists(target) {
			return fmt.Errorf("task %s finished without writing %s", t.Name, target)
		}
	}
	if err := g.reg.Record(ctx, t.Name, key, g.clock.Now()); err != nil {
		return fmt.Errorf("task %s: %w", t.Name, err)
	}
	g.log.Info().Str("task", t.Name).Dur("elapsed", g.clock.Since(start)).Msg("task complete")
	return nil
}

func (g *Graph) targetsExist(t *Task) bool {
	for _, target := range t.Targets {
		if !g.fs.Exists(target) {
			return false
		}
	}
	return true
}

// signature fingerprints a task: its name, parameters, target paths
// and the size and modification time of every input file. Input files
// must exist when the signature is computed, which Run guarantees by
// fingerprinting only after the task's dependencies finish.
func (g *Graph) signature(t *Task) (string, error) {
	h := sha256.New()
	io.WriteString(h, t.Name)
	io.WriteString(h, "\x00")
	io.WriteString(h, t.Params)
	io.WriteString(h, "\x00")
	for _, in := range t.Inputs {
		fi, err := g.fs.Stat(in)
		if err != nil {
			return "", fmt.Errorf("fingerprint input %s: %w", in, err)
		}
		fmt.Fprintf(h, "%s|%d|%d\x00", in, fi.Size(), fi.ModTime().UnixNano())
	}
	for _, target := range t.Targets {
		io.WriteString(h, target)
		io.WriteString(h, "\x00")
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
