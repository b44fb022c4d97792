package msgsync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"inappkit/internal/ingest"
	"inappkit/internal/messaging"
	"inappkit/internal/types"
)

const (
	// DefaultRefreshInterval is how often Run refreshes when no interval is
	// configured.
	DefaultRefreshInterval = 5 * time.Minute

	// FetchConcurrencyLimit caps concurrent source fetches per refresh.
	FetchConcurrencyLimit = 4
)

// SyncerConfig tunes a Syncer.
type SyncerConfig struct {
	RefreshInterval time.Duration
	Metrics         messaging.DisplayMetrics
	Clock           types.Clock
}

// Syncer refreshes both managers from its sources.
type Syncer struct {
	sources  []Source
	decoder  *ingest.Decoder
	inApp    InAppSink
	inbox    InboxSink
	metrics  messaging.DisplayMetrics
	clock    types.Clock
	interval time.Duration
	logger   types.Logger

	// refreshMu keeps refreshes from interleaving their SetMessages calls.
	refreshMu sync.Mutex
}

// NewSyncer creates a Syncer. inbox may be nil when the inbox is not used.
func NewSyncer(cfg SyncerConfig, decoder *ingest.Decoder, inApp InAppSink, inbox InboxSink, logger types.Logger, sources ...Source) *Syncer {
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = DefaultRefreshInterval
	}
	if cfg.Metrics == nil {
		cfg.Metrics = messaging.NopMetrics{}
	}
	if cfg.Clock == nil {
		cfg.Clock = types.RealClock{}
	}
	return &Syncer{
		sources:  sources,
		decoder:  decoder,
		inApp:    inApp,
		inbox:    inbox,
		metrics:  cfg.Metrics,
		clock:    cfg.Clock,
		interval: cfg.RefreshInterval,
		logger:   logger,
	}
}

// Refresh fetches every source concurrently, decodes the payloads and
// replaces the manager lists. A failing source is logged and skipped, as is
// a payload that fails validation. When every source fails the lists are
// left untouched and an upstream_sync_unavailable error is returned.
func (s *Syncer) Refresh(ctx context.Context) error {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	start := s.clock.Now()
	logger := s.logger.With("refresh_id", uuid.NewString())

	batches, failed := s.fetchAll(ctx, logger)
	if len(s.sources) > 0 && failed == len(s.sources) {
		return types.NewAppError(types.ErrCodeUpstreamSync,
			fmt.Sprintf("all %d message sources failed", failed), nil)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msgs := s.decodeAll(batches, logger)

	s.inApp.SetMessages(ctx, msgs)
	mirrored := MirrorToInbox(msgs)
	if s.inbox != nil {
		s.inbox.SetMessages(ctx, mirrored)
	}

	elapsed := s.clock.Now().Sub(start)
	s.metrics.RecordRefresh(ctx, len(msgs), elapsed)
	logger.Info("message refresh complete",
		"messages", len(msgs),
		"inbox_messages", len(mirrored),
		"failed_sources", failed,
		"duration_ms", elapsed.Milliseconds(),
	)
	return nil
}

// fetchAll returns one batch per source, in source order, and the number of
// sources that failed. Failures are isolated: they never cancel the others.
func (s *Syncer) fetchAll(ctx context.Context, logger types.Logger) ([][]RawPayload, int) {
	batches := make([][]RawPayload, len(s.sources))
	var mu sync.Mutex
	failed := 0

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(FetchConcurrencyLimit)

	for i, src := range s.sources {
		i, src := i, src
		g.Go(func() error {
			payloads, err := src.Fetch(gCtx)
			if err != nil {
				logger.Error("message source fetch failed", "source_index", i, "error", err.Error())
				mu.Lock()
				failed++
				mu.Unlock()
				return nil
			}
			batches[i] = payloads
			return nil
		})
	}
	_ = g.Wait()

	return batches, failed
}

// decodeAll decodes every payload, dropping invalid ones and duplicate IDs.
// The first occurrence of an ID wins, in source order.
func (s *Syncer) decodeAll(batches [][]RawPayload, logger types.Logger) []types.InAppMessage {
	seen := make(map[string]struct{})
	var msgs []types.InAppMessage
	for _, batch := range batches {
		for _, raw := range batch {
			msg, err := s.decoder.Decode(raw.Data)
			if err != nil {
				logPayloadError(logger, raw.Origin, err)
				continue
			}
			if _, dup := seen[msg.MessageID]; dup {
				continue
			}
			seen[msg.MessageID] = struct{}{}
			msgs = append(msgs, msg)
		}
	}
	return msgs
}

func logPayloadError(logger types.Logger, origin string, err error) {
	code := string(types.ErrCodeInternalUnexpected)
	var appErr *types.AppError
	if errors.As(err, &appErr) {
		code = string(appErr.Code)
	}
	logger.Warn("skipping invalid message payload",
		"origin", origin,
		"code", code,
		"error", err.Error(),
	)
}

// Run refreshes immediately and then on every interval until ctx is done.
// Refresh errors are logged; they do not stop the loop.
func (s *Syncer) Run(ctx context.Context) error {
	s.logger.Info("message sync loop started", "interval", s.interval.String())

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if err := s.Refresh(ctx); err != nil && ctx.Err() == nil {
			s.logger.Error("message refresh failed", "error", err.Error())
		}

		select {
		case <-ctx.Done():
			s.logger.Info("message sync loop stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
