package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/zappabad/tradinghall/internal/decision"
	"github.com/zappabad/tradinghall/internal/hall"
	"github.com/zappabad/tradinghall/internal/hall/core"
	"github.com/zappabad/tradinghall/internal/hall/view"
	"github.com/zappabad/tradinghall/internal/journal"
)

// ErrClosed is returned by control operations after Close.
var ErrClosed = errors.New("hall service closed")

// Recorder receives every fetch outcome. *journal.Journal satisfies it.
type Recorder interface {
	Record(ctx context.Context, e journal.Entry) error
}

// Deps are the collaborators of a Service. Only Source is required.
type Deps struct {
	Source   decision.Source
	Market   decision.MarketData
	Recorder Recorder
	Logger   *slog.Logger
}

// command types
type cmdType int

const (
	cmdTick cmdType = iota
	cmdSetRunning
	cmdSetSymbol
	cmdTrigger
	cmdOutcome
	cmdFinish
	cmdExpire
)

type command struct {
	typ     cmdType
	running bool
	symbol  string
	gen     uint64
	outcome core.Outcome
	at      time.Time
	id      string // trading bubble id for expire
	respCh  chan<- response
}

type response struct {
	started bool
	err     error
}

// cycle is one pass of decision fetches over the hall's agents.
type cycle struct {
	id     uuid.UUID
	gen    uint64
	symbol string
	quote  string
	agents []hall.Agent
}

// Service owns the hall state and serializes every change to it through a
// single command processor goroutine.
type Service struct {
	cfg  Config
	deps Deps
	log  *slog.Logger
	core *core.Core
	view *view.HallView

	// owned by the command processor
	state       core.State
	tickStop    chan struct{}
	cycleCancel context.CancelFunc
	timers      map[string]*time.Timer

	cmdCh          chan command
	internalEvents chan core.Event
	externalEvents chan core.Event

	droppedExternal atomic.Int64

	closed    chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewService creates a hall Service, starts its goroutines and kicks off the
// first decision cycle.
func NewService(cfg Config, deps Deps) (*Service, error) {
	if deps.Source == nil {
		return nil, errors.New("hall service: decision source is required")
	}
	cfg = cfg.withDefaults()
	loc, ok := core.LookupLocale(cfg.Locale)
	if !ok {
		return nil, fmt.Errorf("hall service: unknown locale %q", cfg.Locale)
	}
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}

	c := core.NewCore(core.Options{
		Arena:    cfg.Arena,
		TradeTTL: cfg.TradeTTL,
		Locale:   loc,
		Rand:     rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		Quote:    cfg.Quote,
	})
	st, err := c.Init(cfg.Agents, cfg.Symbol)
	if err != nil {
		return nil, fmt.Errorf("hall service: %w", err)
	}

	s := &Service{
		cfg:            cfg,
		deps:           deps,
		log:            log.With("component", "hall"),
		core:           c,
		view:           view.NewHallView(cfg.DecisionTapeSize),
		state:          st,
		timers:         map[string]*time.Timer{},
		cmdCh:          make(chan command, cfg.CommandBuffer),
		internalEvents: make(chan core.Event, cfg.EventBuffer),
		externalEvents: make(chan core.Event, cfg.ExternalEventBuffer),
		closed:         make(chan struct{}),
	}
	s.view.Publish(st)

	s.wg.Add(1)
	go s.runCommandProcessor()

	s.wg.Add(1)
	go s.runEventDispatcher()

	if cfg.RefreshInterval > 0 {
		s.wg.Add(1)
		go s.runTicker(nil, cfg.RefreshInterval, cmdTrigger)
	}

	return s, nil
}

func (s *Service) runCommandProcessor() {
	defer s.wg.Done()
	defer s.shutdown()

	if s.cfg.Autostart {
		s.setRunning(true)
	}
	s.trigger()
	s.view.Publish(s.state)

	for {
		select {
		case <-s.closed:
			return
		case cmd := <-s.cmdCh:
			if s.processCommand(cmd) {
				s.view.Publish(s.state)
			}
		}
	}
}

// processCommand applies one command and reports whether the state changed.
func (s *Service) processCommand(cmd command) bool {
	var (
		resp    response
		changed bool
	)

	switch cmd.typ {
	case cmdTick:
		if !s.state.Running {
			return false
		}
		var evs []core.Event
		s.state, evs = s.core.Tick(s.state)
		s.emitAll(evs)
		changed = true

	case cmdSetRunning:
		changed = s.setRunning(cmd.running)

	case cmdSetSymbol:
		next, evs, err := s.core.SetSymbol(s.state, cmd.symbol)
		resp.err = err
		if err == nil && len(evs) > 0 {
			s.cancelCycle()
			s.state = next
			s.emitAll(evs)
			s.log.Info("symbol changed", "symbol", next.Symbol)
			resp.started = s.trigger()
			changed = true
		}

	case cmdTrigger:
		resp.started = s.trigger()
		changed = resp.started

	case cmdOutcome:
		var evs []core.Event
		s.state, evs = s.core.ApplyOutcome(s.state, cmd.gen, cmd.outcome, cmd.at)
		// stale and retained outcomes leave the state as it was
		for _, ev := range evs {
			switch e := ev.(type) {
			case core.DecisionUpdatedEvent:
				changed = true
			case core.TradeOpenedEvent:
				s.scheduleExpiry(e.Bubble)
			}
		}
		s.emitAll(evs)

	case cmdFinish:
		var evs []core.Event
		s.state, evs = s.core.FinishFetch(s.state, cmd.gen)
		if len(evs) > 0 {
			s.cancelCycle()
		}
		s.emitAll(evs)
		changed = len(evs) > 0

	case cmdExpire:
		delete(s.timers, cmd.id)
		var evs []core.Event
		s.state, evs = s.core.ExpireTrade(s.state, cmd.id)
		s.emitAll(evs)
		changed = len(evs) > 0
	}

	if cmd.respCh != nil {
		cmd.respCh <- resp
	}
	return changed
}

func (s *Service) setRunning(running bool) bool {
	var evs []core.Event
	s.state, evs = s.core.SetRunning(s.state, running)
	if len(evs) == 0 {
		return false
	}
	if running {
		s.startTicker()
	} else {
		s.stopTicker()
	}
	s.emitAll(evs)
	return true
}

// trigger starts a decision cycle unless one is already in flight.
func (s *Service) trigger() bool {
	next, gen, ok, evs := s.core.BeginFetch(s.state)
	if !ok {
		return false
	}
	s.state = next
	s.emitAll(evs)

	c := cycle{
		id:     uuid.New(),
		gen:    gen,
		symbol: next.Symbol,
		quote:  next.Quote,
	}
	for _, a := range next.Agents {
		if a.IsHuman() {
			continue
		}
		c.agents = append(c.agents, a)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cycleCancel = cancel
	s.wg.Add(1)
	go s.runCycle(ctx, c)
	return true
}

func (s *Service) cancelCycle() {
	if s.cycleCancel != nil {
		s.cycleCancel()
		s.cycleCancel = nil
	}
}

func (s *Service) startTicker() {
	if s.tickStop != nil {
		return
	}
	stop := make(chan struct{})
	s.tickStop = stop
	s.wg.Add(1)
	go s.runTicker(stop, s.cfg.TickInterval, cmdTick)
}

func (s *Service) stopTicker() {
	if s.tickStop != nil {
		close(s.tickStop)
		s.tickStop = nil
	}
}

func (s *Service) scheduleExpiry(b core.TradingBubble) {
	id := b.ID
	s.timers[id] = time.AfterFunc(s.cfg.TradeTTL, func() {
		s.send(command{typ: cmdExpire, id: id})
	})
}

// shutdown releases everything the command processor owns.
func (s *Service) shutdown() {
	s.stopTicker()
	s.cancelCycle()
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
}

// runTicker posts typ every interval until stop or Close. A nil stop runs until Close.
func (s *Service) runTicker(stop <-chan struct{}, every time.Duration, typ cmdType) {
	defer s.wg.Done()

	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-s.closed:
			return
		case <-stop:
			return
		case <-ticker.C:
			select {
			case s.cmdCh <- command{typ: typ}:
			case <-stop:
				return
			case <-s.closed:
				return
			}
		}
	}
}

// send posts a command without waiting for a response.
func (s *Service) send(cmd command) {
	select {
	case s.cmdCh <- cmd:
	case <-s.closed:
	}
}

func (s *Service) emitAll(evs []core.Event) {
	for _, ev := range evs {
		s.emitEvent(ev)
	}
}

func (s *Service) emitEvent(ev core.Event) {
	select {
	case s.internalEvents <- ev:
	case <-s.closed:
	}
}

func (s *Service) runEventDispatcher() {
	defer s.wg.Done()
	defer close(s.externalEvents)

	for {
		select {
		case <-s.closed:
			return
		case ev := <-s.internalEvents:
			s.view.Apply(ev)

			if s.cfg.DropExternalEvents {
				select {
				case s.externalEvents <- ev:
				default:
					s.droppedExternal.Add(1)
				}
			} else {
				select {
				case s.externalEvents <- ev:
				case <-s.closed:
					return
				}
			}
		}
	}
}

func (s *Service) request(ctx context.Context, cmd command) (response, error) {
	respCh := make(chan response, 1)
	cmd.respCh = respCh

	select {
	case <-s.closed:
		return response{}, ErrClosed
	case <-ctx.Done():
		return response{}, ctx.Err()
	case s.cmdCh <- cmd:
	}

	select {
	case <-s.closed:
		return response{}, ErrClosed
	case <-ctx.Done():
		return response{}, ctx.Err()
	case resp := <-respCh:
		return resp, resp.err
	}
}

// SetRunning starts or pauses agent motion. Decision cycles are unaffected.
func (s *Service) SetRunning(ctx context.Context, running bool) error {
	_, err := s.request(ctx, command{typ: cmdSetRunning, running: running})
	return err
}

// SetSymbol switches the hall to another asset. The cycle in flight is
// abandoned and a new one starts for the new symbol.
func (s *Service) SetSymbol(ctx context.Context, symbol string) error {
	_, err := s.request(ctx, command{typ: cmdSetSymbol, symbol: symbol})
	return err
}

// TriggerFetch starts a decision cycle. It reports false when one was
// already in flight.
func (s *Service) TriggerFetch(ctx context.Context) (bool, error) {
	resp, err := s.request(ctx, command{typ: cmdTrigger})
	return resp.started, err
}

// Snapshot returns the latest published hall snapshot.
func (s *Service) Snapshot() view.Snapshot {
	return s.view.Snapshot()
}

// Decisions returns the last n decision updates, oldest first.
func (s *Service) Decisions(n int) []view.DecisionRecord {
	return s.view.DecisionsLast(n)
}

// Events returns the external events channel for subscribers.
func (s *Service) Events() <-chan core.Event {
	return s.externalEvents
}

// DroppedExternalEvents returns the count of dropped external events.
func (s *Service) DroppedExternalEvents() int64 {
	return s.droppedExternal.Load()
}

// Close stops every loop, cancels the cycle in flight, stops all pending
// bubble timers and waits for goroutines to finish.
func (s *Service) Close() {
	s.closeOnce.Do(func() {
		close(s.closed)
	})
	s.wg.Wait()
}
