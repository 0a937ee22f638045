package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"CryptoScreener/internal/model"
	"CryptoScreener/internal/notifier"
	"CryptoScreener/internal/recorder"
	"CryptoScreener/internal/scanner"
)

// ErrScanInProgress is returned when a scan is requested while another one runs.
var ErrScanInProgress = errors.New("a scan is already running")

// Sender delivers chat messages. *notifier.TelegramNotifier implements it.
type Sender interface {
	SendWithRetry(ctx context.Context, text string, maxRetries int) error
}

const listLimit = 30

// Scheduler runs periodic scans and holds the latest result set.
type Scheduler struct {
	cron     *cron.Cron
	scanner  *scanner.Scanner
	params   model.ScanParameters
	notifier Sender
	recorder recorder.Recorder
	log      zerolog.Logger
	ctx      context.Context

	scanMu sync.Mutex
	mu     sync.RWMutex
	latest *scanner.ResultSet
}

// NewScheduler creates a new Scheduler. notifier may be nil when chat is not configured.
func NewScheduler(ctx context.Context, sc *scanner.Scanner, params model.ScanParameters, n Sender, rec recorder.Recorder, log zerolog.Logger) *Scheduler {
	if rec == nil {
		rec = recorder.NewNoopRecorder()
	}
	return &Scheduler{
		cron:     cron.New(cron.WithSeconds()),
		scanner:  sc,
		params:   params,
		notifier: n,
		recorder: rec,
		log:      log.With().Str("component", "scheduler").Logger(),
		ctx:      ctx,
	}
}

// Register schedules the periodic scan. An empty cron expression disables it.
func (s *Scheduler) Register(scanCron string) error {
	if scanCron == "" {
		return nil
	}
	if _, err := s.cron.AddFunc(scanCron, s.scanTask); err != nil {
		return fmt.Errorf("register scan task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info().Int("jobs", len(s.cron.Entries())).Msg("scheduler started")
}

// Stop stops the cron scheduler and waits for a running job to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.log.Info().Msg("scheduler stopped")
}

// Params returns the configured scan parameters.
func (s *Scheduler) Params() model.ScanParameters { return s.params }

// Latest returns the most recent completed scan, or nil before the first one.
func (s *Scheduler) Latest() *scanner.ResultSet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest
}

// RunScan runs one scan, stores it as latest and journals it.
// Only one scan runs at a time.
func (s *Scheduler) RunScan(ctx context.Context, params model.ScanParameters) (*scanner.ResultSet, error) {
	if !s.scanMu.TryLock() {
		return nil, ErrScanInProgress
	}
	defer s.scanMu.Unlock()

	rs, err := s.scanner.Scan(ctx, params, nil)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.latest = rs
	s.mu.Unlock()

	if err := s.recorder.RecordScan(context.WithoutCancel(ctx), rs); err != nil {
		s.log.Error().Err(err).Str("scan_id", rs.ID).Msg("record scan")
	}
	return rs, nil
}

// Detail returns the chart for symbol using the parameters of the latest scan.
func (s *Scheduler) Detail(ctx context.Context, symbol string) (*model.Chart, error) {
	params := s.params
	if latest := s.Latest(); latest != nil {
		params = latest.Params
	}
	return s.scanner.Detail(ctx, params, symbol)
}

// RunNow executes the scheduled scan immediately (for RUN_ON_START).
func (s *Scheduler) RunNow() {
	s.scanTask()
}

func (s *Scheduler) scanTask() {
	s.log.Info().Msg("running scheduled scan")
	rs, err := s.RunScan(s.ctx, s.params)
	if err != nil {
		if errors.Is(err, ErrScanInProgress) {
			s.log.Warn().Msg("previous scan still running, skipping")
			return
		}
		s.log.Error().Err(err).Msg("scheduled scan failed")
		s.trySend(fmt.Sprintf("❌ Scan failed: %v", err))
		return
	}
	s.trySend(notifier.FormatScanReport(rs))
}

// HandleCommand processes a user command and returns a reply.
func (s *Scheduler) HandleCommand(ctx context.Context, command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return helpText()
	}
	// commands in groups arrive as /scan@botname
	name := strings.SplitN(fields[0], "@", 2)[0]

	switch name {
	case "/scan":
		rs, err := s.RunScan(ctx, s.params)
		if err != nil {
			return fmt.Sprintf("❌ Scan failed: %v", err)
		}
		return notifier.FormatScanReport(rs)
	case "/bullish":
		return s.withLatest(func(rs *scanner.ResultSet) string {
			view := rs.Filter([]model.Signal{model.SignalBullishCross, model.SignalBullishTrend}, model.AllTrends())
			return notifier.FormatSignalList("Bullish", view.Sorted(scanner.SortGap), listLimit)
		})
	case "/bearish":
		return s.withLatest(func(rs *scanner.ResultSet) string {
			view := rs.Filter([]model.Signal{model.SignalBearishCross, model.SignalBearishTrend}, model.AllTrends())
			return notifier.FormatSignalList("Bearish", view.Sorted(scanner.SortGap), listLimit)
		})
	case "/summary":
		return s.withLatest(notifier.FormatSummary)
	case "/signal":
		if len(fields) < 2 {
			return "Usage: /signal SYMBOL"
		}
		symbol := strings.ToUpper(fields[1])
		return s.withLatest(func(rs *scanner.ResultSet) string {
			rec, ok := rs.Find(symbol)
			if !ok {
				return fmt.Sprintf("%s is not in the latest scan.", symbol)
			}
			return notifier.FormatSignal(rec, rs.Params)
		})
	default:
		return helpText()
	}
}

func (s *Scheduler) withLatest(f func(*scanner.ResultSet) string) string {
	rs := s.Latest()
	if rs == nil {
		return "No scan has completed yet. Send /scan to run one."
	}
	return f(rs)
}

func helpText() string {
	return "Available commands:\n• /scan run a scan now\n• /bullish bullish signals of the latest scan\n• /bearish bearish signals of the latest scan\n• /summary latest scan summary\n• /signal SYMBOL one instrument of the latest scan"
}

func (s *Scheduler) trySend(text string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.SendWithRetry(s.ctx, text, 3); err != nil {
		s.log.Error().Err(err).Msg("send notification")
	}
}
