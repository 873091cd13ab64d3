package service

import (
	"context"
	"fmt"
	"time"

	"github.com/zappabad/tradinghall/internal/decision"
	"github.com/zappabad/tradinghall/internal/hall"
	"github.com/zappabad/tradinghall/internal/hall/core"
	"github.com/zappabad/tradinghall/internal/hall/view"
	"github.com/zappabad/tradinghall/internal/journal"
)

// runCycle fetches one decision per agent, one agent at a time, and posts each
// outcome back to the command processor. The cycle always reports completion,
// even when it is cancelled or a source panics.
func (s *Service) runCycle(ctx context.Context, c cycle) {
	defer s.wg.Done()
	defer s.send(command{typ: cmdFinish, gen: c.gen})

	log := s.log.With("cycle", c.id, "generation", c.gen, "symbol", c.symbol)
	log.Debug("decision cycle started", "agents", len(c.agents))
	start := time.Now()

	s.refreshMarket(ctx, c)

	for _, a := range c.agents {
		if ctx.Err() != nil {
			log.Debug("decision cycle abandoned")
			return
		}

		began := time.Now()
		d, err := s.fetch(ctx, c, a)
		latency := time.Since(began)
		if ctx.Err() != nil {
			log.Debug("decision cycle abandoned")
			return
		}

		out := core.Outcome{AgentID: a.ID, Decision: d, Err: err}.Normalize()
		switch {
		case out.Err == nil:
			log.Debug("decision fetched", "agent", a.ID, "action", d.Action, "latency", latency)
		case decision.Classify(out.Err).Soft():
			log.Debug("decision rate limited", "agent", a.ID)
		default:
			log.Warn("decision fetch failed", "agent", a.ID, "kind", decision.Classify(out.Err), "err", out.Err)
		}

		s.record(c, a, out.Decision, out.Err, latency)
		s.send(command{
			typ:     cmdOutcome,
			gen:     c.gen,
			outcome: out,
			at:      time.Now(),
		})
	}

	log.Debug("decision cycle finished", "elapsed", time.Since(start))
}

// fetch asks the source for one agent's decision. Gamblers follow technical
// analysis, value investors the value model.
func (s *Service) fetch(ctx context.Context, c cycle, a hall.Agent) (d decision.Decision, err error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			s.log.Error("decision source panicked", "agent", a.ID, "panic", r)
			d = decision.Decision{}
			err = decision.NewFetchError(decision.KindServer, 0, fmt.Errorf("source panic: %v", r))
		}
	}()

	switch a.Kind {
	case hall.KindGambler:
		return s.deps.Source.Technical(ctx, c.symbol, c.quote, s.cfg.LookbackDays)
	case hall.KindValue:
		return s.deps.Source.Value(ctx, c.symbol, c.quote, s.cfg.LookbackDays)
	default:
		return decision.Decision{}, fmt.Errorf("no decision model for %s agents", a.Kind)
	}
}

// refreshMarket updates the market summary shown next to the hall. Failures
// only cost the summary.
func (s *Service) refreshMarket(ctx context.Context, c cycle) {
	if s.deps.Market == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
	defer cancel()

	candles, err := s.deps.Market.OHLC(ctx, c.symbol, c.quote, s.cfg.LookbackDays)
	if err != nil {
		s.log.Warn("market data fetch failed", "symbol", c.symbol, "err", err)
		return
	}
	if m, ok := view.Summarize(c.symbol, candles); ok {
		s.view.SetMarket(m)
	}
}

func (s *Service) record(c cycle, a hall.Agent, d decision.Decision, err error, latency time.Duration) {
	if s.deps.Recorder == nil {
		return
	}
	e := journal.Entry{
		CycleID:    c.id,
		Generation: int64(c.gen),
		AgentID:    string(a.ID),
		AgentKind:  a.Kind.String(),
		Symbol:     c.symbol,
		Quote:      c.quote,
		Action:     string(d.Action),
		Confidence: d.Confidence,
		Reasoning:  d.Reasoning,
		Price:      d.Price,
		LatencyMS:  latency.Milliseconds(),
		RecordedMS: time.Now().UnixMilli(),
	}
	if err != nil {
		e.ErrorKind = decision.Classify(err).String()
		e.ErrorText = err.Error()
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.JournalTimeout)
	defer cancel()
	if rerr := s.deps.Recorder.Record(ctx, e); rerr != nil {
		s.log.Warn("journal write failed", "agent", a.ID, "err", rerr)
	}
}
