package hotreload

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultDebounce is used when no debounce time is configured.
const DefaultDebounce = 300 * time.Millisecond

// Reloadable represents a component that can reload itself from disk.
type Reloadable interface {
	Reload(ctx context.Context) error
	Name() string
}

// Result is the outcome of reloading one component.
type Result struct {
	Component string
	Events    int
	Duration  time.Duration
	Err       error
}

// Coordinator batches watcher events and reloads every registered
// component once per quiet period.
type Coordinator struct {
	watcher      *Watcher
	logger       *zap.Logger
	reloadables  map[string]Reloadable
	onReload     func(context.Context, []Result)
	ctx          context.Context
	cancel       context.CancelFunc
	mu           sync.RWMutex
	debounceTime time.Duration
	wg           sync.WaitGroup
	isRunning    bool
}

// NewCoordinator creates a new reload coordinator
func NewCoordinator(watcher *Watcher, logger *zap.Logger) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &Coordinator{
		watcher:      watcher,
		logger:       logger,
		reloadables:  make(map[string]Reloadable),
		ctx:          ctx,
		cancel:       cancel,
		debounceTime: DefaultDebounce,
	}
}

// Register adds a reloadable component to the coordinator
func (c *Coordinator) Register(reloadable Reloadable) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	name := reloadable.Name()
	if _, exists := c.reloadables[name]; exists {
		return fmt.Errorf("reloadable %s already registered", name)
	}

	c.reloadables[name] = reloadable
	c.logger.Info("Registered reloadable component", zap.String("name", name))
	return nil
}

// Unregister removes a reloadable component from the coordinator
func (c *Coordinator) Unregister(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.reloadables, name)
	c.logger.Info("Unregistered reloadable component", zap.String("name", name))
}

// OnReload sets a callback invoked with the results of every reload round.
func (c *Coordinator) OnReload(fn func(context.Context, []Result)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onReload = fn
}

// Start begins the hot reload coordination
func (c *Coordinator) Start() error {
	c.mu.Lock()
	if c.isRunning {
		c.mu.Unlock()
		return fmt.Errorf("coordinator already running")
	}
	c.isRunning = true
	c.mu.Unlock()

	c.watcher.Start()

	c.wg.Add(1)
	go c.coordinateReloads()

	c.logger.Info("Hot reload coordinator started", zap.Duration("debounce", c.debounce()))
	return nil
}

// Stop stops the watcher and waits for an in-flight reload to finish.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	if !c.isRunning {
		c.mu.Unlock()
		return
	}
	c.isRunning = false
	c.mu.Unlock()

	c.cancel()
	c.watcher.Stop()
	c.wg.Wait()

	c.logger.Info("Hot reload coordinator stopped")
}

func (c *Coordinator) coordinateReloads() {
	defer c.wg.Done()

	var (
		timer   *time.Timer
		timerC  <-chan time.Time
		pending int
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-c.ctx.Done():
			return

		case event, ok := <-c.watcher.Events():
			if !ok {
				return
			}
			pending++
			c.logger.Debug("Reload event queued",
				zap.String("path", event.Path),
				zap.String("operation", event.Op.String()),
			)

			if timer == nil {
				timer = time.NewTimer(c.debounce())
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(c.debounce())
			}
			timerC = timer.C

		case <-timerC:
			timerC = nil
			if pending > 0 {
				c.Trigger(c.ctx, pending)
				pending = 0
			}
		}
	}
}

// Trigger reloads every registered component concurrently and returns the
// results ordered by component name.
func (c *Coordinator) Trigger(ctx context.Context, events int) []Result {
	c.mu.RLock()
	reloadables := make([]Reloadable, 0, len(c.reloadables))
	for _, r := range c.reloadables {
		reloadables = append(reloadables, r)
	}
	onReload := c.onReload
	c.mu.RUnlock()

	if len(reloadables) == 0 {
		return nil
	}

	c.logger.Info("Triggering hot reload", zap.Int("events", events))

	results := make([]Result, len(reloadables))
	var wg sync.WaitGroup
	for i, reloadable := range reloadables {
		wg.Add(1)
		go func(i int, r Reloadable) {
			defer wg.Done()

			start := time.Now()
			err := r.Reload(ctx)
			if err != nil {
				err = fmt.Errorf("failed to reload %s: %w", r.Name(), err)
			}
			results[i] = Result{
				Component: r.Name(),
				Events:    events,
				Duration:  time.Since(start),
				Err:       err,
			}
		}(i, reloadable)
	}
	wg.Wait()

	sort.Slice(results, func(i, j int) bool { return results[i].Component < results[j].Component })

	failed := 0
	for _, res := range results {
		if res.Err != nil {
			failed++
			c.logger.Error("Reload error", zap.String("name", res.Component), zap.Error(res.Err))
		} else {
			c.logger.Info("Successfully reloaded component",
				zap.String("name", res.Component),
				zap.Duration("duration", res.Duration),
			)
		}
	}
	if failed > 0 {
		c.logger.Error("Hot reload completed with errors", zap.Int("errors", failed))
	} else {
		c.logger.Info("Hot reload completed successfully")
	}

	if onReload != nil {
		onReload(ctx, results)
	}
	return results
}

// SetDebounceTime sets the debounce time for reload events
func (c *Coordinator) SetDebounceTime(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.debounceTime = d
}

func (c *Coordinator) debounce() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.debounceTime
}

// IsRunning returns whether the coordinator is currently running
func (c *Coordinator) IsRunning() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.isRunning
}
