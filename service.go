package main

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"streamstats_worker/onlinestats"
)

type worker struct {
	db     *sql.DB
	cfg    Config
	logger *zap.Logger
}

func (w *worker) processTestRun(ctx context.Context, testRunID int64) error {
	exists, err := existsTestRun(ctx, w.db, testRunID)
	if err != nil {
		return fmt.Errorf("look up test_runs id %d: %w", testRunID, err)
	}
	if !exists {
		return fmt.Errorf("test_runs id %d not found", testRunID)
	}
	page, perPage, err := fetchTaskWindow(ctx, w.db, testRunID)
	if err != nil {
		return fmt.Errorf("fetch task window failed: %w", err)
	}

	var sum *summary
	m, err := measureRun(func() error {
		var err error
		sum, err = w.summarizeWindow(ctx, windowLimitOffset(page, perPage))
		return err
	})
	if err != nil {
		return fmt.Errorf("summarize samples failed: %w", err)
	}
	stats := sum.Stats()
	if stats.Rejected > 0 {
		w.logger.Warn("skipped non-finite samples",
			zap.Int64("test_run_id", testRunID),
			zap.Uint64("rejected", stats.Rejected))
	}

	state, err := json.Marshal(sum)
	if err != nil {
		return fmt.Errorf("encode accumulator state: %w", err)
	}
	if err := insertTestResult(ctx, w.db, testRunID, stats, state, m.Duration.Seconds(), m.PeakRSS); err != nil {
		return fmt.Errorf("insert test_result failed: %w", err)
	}
	w.logger.Info("processed test run",
		zap.Int64("test_run_id", testRunID),
		zap.Uint64("samples", stats.Count),
		zap.Duration("duration", m.Duration),
		zap.Float64("peak_rss_bytes", m.PeakRSS))
	return nil
}

// summarizeWindow splits win into partitions, summarizes each on its own
// goroutine and merges the partial summaries.
func (w *worker) summarizeWindow(ctx context.Context, win window) (*summary, error) {
	windows := partitionWindow(win, w.cfg.Partitions)
	parts := make([]*summary, len(windows))
	g, gctx := errgroup.WithContext(ctx)
	for i, pw := range windows {
		s, err := newSummary(w.cfg.Quantiles)
		if err != nil {
			return nil, err
		}
		parts[i] = s
		pw := pw
		g.Go(func() error {
			if err := streamSamples(gctx, w.db, pw, s.Push); err != nil {
				return fmt.Errorf("partition offset=%d limit=%d: %w", pw.offset, pw.limit, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return onlinestats.Reduce(parts)
}

// runService pops Sidekiq jobs from Redis until ctx is cancelled.
func (w *worker) runService(ctx context.Context) error {
	target, err := parseRedisURL(w.cfg.RedisURL)
	if err != nil {
		return err
	}
	queue := "queue:" + w.cfg.Queue
	logger := w.logger.With(zap.String("redis", target.addr), zap.String("queue", queue))

	for ctx.Err() == nil {
		if err := w.consume(ctx, target, queue, logger); err != nil {
			logger.Warn("redis connection lost; reconnecting", zap.Error(err))
			sleepContext(ctx, 2*time.Second)
			continue
		}
		sleepContext(ctx, time.Second)
	}
	return nil
}

// consume serves one Redis connection. It returns nil when ctx is done.
func (w *worker) consume(ctx context.Context, target redisTarget, queue string, logger *zap.Logger) error {
	var d net.Dialer
	dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	conn, err := d.DialContext(dialCtx, "tcp", target.addr)
	cancel()
	if err != nil {
		return fmt.Errorf("redis connect failed: %w", err)
	}
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	rw := bufio.NewReadWriter(bufio.NewReader(conn), bufio.NewWriter(conn))
	if target.password != "" {
		if err := writeCommand(rw, "AUTH", target.password); err != nil {
			return err
		}
		if err := readOK(rw); err != nil {
			return fmt.Errorf("redis auth failed: %w", err)
		}
	}
	if target.db != 0 {
		if err := writeCommand(rw, "SELECT", strconv.Itoa(target.db)); err != nil {
			return err
		}
		if err := readOK(rw); err != nil {
			return fmt.Errorf("redis select failed: %w", err)
		}
	}

	for {
		if err := writeCommand(rw, "BRPOP", queue, "5"); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("redis write error: %w", err)
		}
		_, payload, err := readBRPOP(rw)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, io.EOF) {
				return err
			}
			return fmt.Errorf("redis read error: %w", err)
		}
		if payload == "" {
			continue // timeout
		}
		w.handlePayload(ctx, payload, logger)
	}
}

func (w *worker) handlePayload(ctx context.Context, payload string, logger *zap.Logger) {
	job, id, err := parseJob(payload)
	switch {
	case errors.Is(err, errSkipJob):
		logger.Debug("skipping job", zap.String("class", job.Class))
		return
	case err != nil:
		logger.Warn("invalid job", zap.Error(err), zap.String("payload", payload))
		return
	}
	if err := w.processTestRun(ctx, id); err != nil {
		logger.Error("process error", zap.Int64("test_run_id", id), zap.Error(err))
	}
}

func sleepContext(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
