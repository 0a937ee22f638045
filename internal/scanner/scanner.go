package scanner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"CryptoScreener/internal/collector"
	"CryptoScreener/internal/metrics"
	"CryptoScreener/internal/model"
	"CryptoScreener/internal/strategy"
)

// ErrInstrumentPanic marks an instrument skipped because handling it panicked.
var ErrInstrumentPanic = errors.New("instrument evaluation panicked")

// Progress is reported once per processed instrument.
type Progress struct {
	Done   int
	Total  int
	Symbol string
	Err    error // why the instrument was skipped, nil when it produced a record
}

// ProgressFunc receives progress updates. With several workers it is called
// under the scanner's lock, so it must not block.
type ProgressFunc func(Progress)

// Scanner runs EMA crossover scans against one provider.
type Scanner struct {
	provider collector.Provider
	workers  int
	log      zerolog.Logger
	metrics  *metrics.Recorder
	now      func() time.Time
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithWorkers sets how many instruments are fetched concurrently. 1 is sequential.
func WithWorkers(n int) Option {
	return func(s *Scanner) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithLogger sets the logger used for scan and skip events.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Scanner) { s.log = l }
}

// WithMetrics records scan outcomes and fetch latency on m.
func WithMetrics(m *metrics.Recorder) Option {
	return func(s *Scanner) { s.metrics = m }
}

// New returns a sequential Scanner reading from provider.
func New(provider collector.Provider, opts ...Option) *Scanner {
	s := &Scanner{
		provider: provider,
		workers:  1,
		log:      zerolog.Nop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scan runs a single scan with a sequential scanner.
func Scan(ctx context.Context, params model.ScanParameters, provider collector.Provider, progress ProgressFunc) (*ResultSet, error) {
	return New(provider).Scan(ctx, params, progress)
}

// Scan lists instruments, evaluates each one and returns the records in listing order.
// Instruments that fail to fetch or lack history are skipped. A context cancelled
// after listing stops the scan early and returns the partial result with a nil error;
// one cancelled before the instruments are listed returns the context's error.
func (s *Scanner) Scan(ctx context.Context, params model.ScanParameters, progress ProgressFunc) (*ResultSet, error) {
	if err := ValidateParameters(params); err != nil {
		return nil, err
	}
	if progress == nil {
		progress = func(Progress) {}
	}

	exchange := s.provider.Name()
	log := s.log.With().Str("exchange", exchange).Str("timeframe", string(params.Timeframe)).Logger()
	started := s.now()

	instruments, err := s.provider.ListInstruments(ctx)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			log.Warn().Err(ctxErr).Msg("scan cancelled while listing instruments")
			if s.metrics != nil {
				s.metrics.RecordScan(exchange, "cancelled", 0)
			}
			return nil, fmt.Errorf("list instruments: %w", ctxErr)
		}
		if !errors.Is(err, collector.ErrProviderUnavailable) {
			err = fmt.Errorf("%w: %w", collector.ErrProviderUnavailable, err)
		}
		log.Error().Err(err).Msg("list instruments failed")
		if s.metrics != nil {
			s.metrics.RecordScan(exchange, "error", 0)
		}
		return nil, fmt.Errorf("list instruments: %w", err)
	}
	if len(instruments) > params.MaxSymbols {
		instruments = instruments[:params.MaxSymbols]
	}

	rs := &ResultSet{
		ID:        uuid.NewString(),
		Exchange:  exchange,
		Params:    params,
		Total:     len(instruments),
		StartedAt: started,
	}
	log.Info().Str("scan_id", rs.ID).Int("instruments", rs.Total).
		Int("fast", params.FastPeriod).Int("slow", params.SlowPeriod).Msg("scan started")

	var records []model.SignalRecord
	var partial bool
	if s.workers <= 1 {
		records, partial = s.scanSequential(ctx, params, instruments, progress)
	} else {
		records, partial = s.scanParallel(ctx, params, instruments, progress)
	}

	rs.Records = records
	if rs.Records == nil {
		rs.Records = []model.SignalRecord{}
	}
	rs.Partial = partial
	rs.FinishedAt = s.now()

	outcome := "ok"
	if partial {
		outcome = "partial"
	}
	if s.metrics != nil {
		s.metrics.RecordScan(exchange, outcome, rs.Duration().Seconds())
		s.metrics.RecordLatest(rs.Total, rs.Counts(), float64(rs.FinishedAt.Unix()))
	}

	ev := log.Info()
	if partial {
		ev = log.Warn()
	}
	ev.Str("scan_id", rs.ID).Int("scanned", rs.Total).Int("records", len(rs.Records)).
		Bool("partial", partial).Dur("duration", rs.Duration()).Msg("scan finished")
	if len(rs.Records) == 0 && !partial {
		log.Info().Str("scan_id", rs.ID).Msg("no instrument passed the minimum-history filter")
	}
	return rs, nil
}

func (s *Scanner) scanSequential(ctx context.Context, params model.ScanParameters, instruments []string, progress ProgressFunc) ([]model.SignalRecord, bool) {
	var records []model.SignalRecord
	for i, symbol := range instruments {
		if ctx.Err() != nil {
			return records, true
		}
		rec, err := s.evaluate(ctx, params, symbol)
		if err == nil {
			records = append(records, *rec)
		}
		progress(Progress{Done: i + 1, Total: len(instruments), Symbol: symbol, Err: err})
	}
	// the last fetch may have been cut short
	return records, ctx.Err() != nil
}

func (s *Scanner) scanParallel(ctx context.Context, params model.ScanParameters, instruments []string, progress ProgressFunc) ([]model.SignalRecord, bool) {
	slots := make([]*model.SignalRecord, len(instruments))
	var (
		mu   sync.Mutex
		done int
	)

	var g errgroup.Group
	g.SetLimit(s.workers)
	for i, symbol := range instruments {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			rec, err := s.evaluate(ctx, params, symbol)
			mu.Lock()
			defer mu.Unlock()
			slots[i] = rec
			done++
			progress(Progress{Done: done, Total: len(instruments), Symbol: symbol, Err: err})
			return nil
		})
	}
	_ = g.Wait()

	records := make([]model.SignalRecord, 0, len(instruments))
	for _, rec := range slots {
		if rec != nil {
			records = append(records, *rec)
		}
	}
	return records, done < len(instruments) || ctx.Err() != nil
}

// evaluate fetches one instrument's bars and classifies them. A non-nil error means skip.
// A panic while handling one instrument is turned into a skip.
func (s *Scanner) evaluate(ctx context.Context, params model.ScanParameters, symbol string) (rec *model.SignalRecord, err error) {
	defer func() {
		if r := recover(); r != nil {
			rec = nil
			err = fmt.Errorf("%s: %w: %v", symbol, ErrInstrumentPanic, r)
			s.skip(symbol, "panic", err)
		}
	}()

	start := s.now()
	bars, err := s.provider.FetchBars(ctx, symbol, params.Timeframe, params.BarLimit)
	if s.metrics != nil {
		s.metrics.RecordFetch(s.provider.Name(), s.now().Sub(start).Seconds())
	}
	if err != nil {
		s.skip(symbol, "fetch_error", err)
		return nil, fmt.Errorf("fetch bars: %w", err)
	}

	rec, err = strategy.Evaluate(symbol, bars, params.FastPeriod, params.SlowPeriod)
	if err != nil {
		reason := "evaluate_error"
		if errors.Is(err, strategy.ErrInsufficientHistory) {
			reason = "insufficient_history"
		}
		s.skip(symbol, reason, err)
		return nil, err
	}
	return rec, nil
}

func (s *Scanner) skip(symbol, reason string, err error) {
	s.log.Debug().Str("symbol", symbol).Str("reason", reason).Err(err).Msg("instrument skipped")
	if s.metrics != nil {
		s.metrics.RecordSkip(reason)
	}
}
