// SPDX-License-Identifier: Apache-2.0

// Package history persists finished benchmark reports so results can be
// compared across runs.
package history

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/cloudflare/backoff"
	"github.com/dgraph-io/badger/v4"
	"github.com/pterm/pterm"

	"github.com/xataio/hwbench/pkg/report"
)

var (
	ErrNotFound    = errors.New("report not found in history")
	ErrNotTerminal = errors.New("only finished reports can be stored")
)

const (
	runPrefix = "run/"
	idPrefix  = "id/"

	openAttempts      = 5
	maxOpenBackoff    = 2 * time.Second
	openBackoffPeriod = 100 * time.Millisecond
)

type Config struct {
	// Directory holding the database. Ignored when InMemory is set.
	Path string

	InMemory   bool
	SyncWrites bool

	// Logger receives badger's internal messages. nil discards them.
	Logger *pterm.Logger
}

func DefaultConfig(path string) Config {
	return Config{
		Path:       path,
		SyncWrites: true,
	}
}

func InMemoryConfig() Config {
	return Config{InMemory: true}
}

type badgerLogger struct {
	logger *pterm.Logger
}

func (l *badgerLogger) Errorf(format string, args ...any) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...any) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...any) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...any) {
	l.logger.Trace(fmt.Sprintf(format, args...))
}

// Store is a badger-backed history of reports, keyed by start time so that
// iteration follows run order.
type Store struct {
	db *badger.DB
}

// Open opens the history database. Another process holding the directory
// lock is retried with backoff until ctx is done.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent history")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("create history directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	b := backoff.New(maxOpenBackoff, openBackoffPeriod)
	var err error
	for attempt := 0; attempt < openAttempts; attempt++ {
		var db *badger.DB
		db, err = badger.Open(opts)
		if err == nil {
			return &Store{db: db}, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(b.Duration()):
		}
	}
	return nil, fmt.Errorf("open history database: %w", err)
}

func (s *Store) Close() error {
	return s.db.Close()
}

func runKey(r *report.Report) []byte {
	return fmt.Appendf(nil, "%s%020d/%s", runPrefix, r.StartedAt.UnixNano(), r.ID)
}

func idKey(id string) []byte {
	return []byte(idPrefix + id)
}

// Put stores a finalized report. Storing the same run again replaces it.
func (s *Store) Put(r *report.Report) error {
	if !r.Status.IsTerminal() {
		return ErrNotTerminal
	}
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode report %s: %w", r.ID, err)
	}

	key := runKey(r)
	return s.db.Update(func(txn *badger.Txn) error {
		if old, err := txn.Get(idKey(r.ID)); err == nil {
			prev, err := old.ValueCopy(nil)
			if err != nil {
				return err
			}
			if err := txn.Delete(prev); err != nil {
				return err
			}
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		if err := txn.Set(key, data); err != nil {
			return err
		}
		return txn.Set(idKey(r.ID), key)
	})
}

func (s *Store) Get(id string) (*report.Report, error) {
	var rep *report.Report
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(idKey(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		key, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		item, err = txn.Get(key)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			rep, err = decode(val)
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	return rep, nil
}

// Recent returns up to limit reports, newest first. A limit of 0 or less
// returns every report.
func (s *Store) Recent(limit int) ([]*report.Report, error) {
	var out []*report.Report
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = []byte(runPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		seek := append([]byte(runPrefix), 0xff)
		for it.Seek(seek); it.ValidForPrefix(opts.Prefix); it.Next() {
			if limit > 0 && len(out) == limit {
				break
			}
			err := it.Item().Value(func(val []byte) error {
				rep, err := decode(val)
				if err != nil {
					return err
				}
				out = append(out, rep)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return out, err
}

// Latest returns the most recent report.
func (s *Store) Latest() (*report.Report, error) {
	reps, err := s.Recent(1)
	if err != nil {
		return nil, err
	}
	if len(reps) == 0 {
		return nil, ErrNotFound
	}
	return reps[0], nil
}

// Delete removes a report from the history.
func (s *Store) Delete(id string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(idKey(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		key, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		if err := txn.Delete(key); err != nil {
			return err
		}
		return txn.Delete(idKey(id))
	})
}

func decode(val []byte) (*report.Report, error) {
	rep, err := report.Read(bytes.NewReader(val))
	if err != nil {
		return nil, fmt.Errorf("decode stored report: %w", err)
	}
	return rep, nil
}

// Summary is the one-line view of a stored report.
type Summary struct {
	ID        string
	StartedAt time.Time
	Status    report.Status
	Tests     []string
	Overall   *float64
	Rating    string
}

// List summarizes up to limit reports, newest first.
func (s *Store) List(limit int) ([]Summary, error) {
	reps, err := s.Recent(limit)
	if err != nil {
		return nil, err
	}
	out := make([]Summary, 0, len(reps))
	for _, r := range reps {
		sum := Summary{
			ID:        r.ID,
			StartedAt: r.StartedAt,
			Status:    r.Status,
		}
		for _, k := range r.RawMetrics.Kinds() {
			sum.Tests = append(sum.Tests, k.String())
		}
		if v, ok := r.Overall(); ok {
			sum.Overall = &v
		}
		if rating, ok := r.RatingValue(); ok {
			sum.Rating = string(rating)
		}
		out = append(out, sum)
	}
	return out, nil
}
