// Quillfeed - Personalization and Recommendation Engine for Reading Content
// Copyright 2026 Quillfeed Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/quillfeed/quillfeed

package store

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/quillfeed/quillfeed/internal/config"
	"github.com/quillfeed/quillfeed/internal/metrics"
	"github.com/quillfeed/quillfeed/internal/model"
)

// Key prefixes. Event keys embed a reversed-nanosecond component so a
// forward iteration over the user's event prefix yields newest first.
const (
	prefixProfile = "profile:"
	prefixEvent   = "event:"
	prefixDedupe  = "dedupe:"
)

// lockStripes is the number of per-user write lock stripes.
// Power of two so the hash can be masked.
const lockStripes = 64

// BadgerStore implements ProfileStore on BadgerDB.
type BadgerStore struct {
	db     *badger.DB
	cfg    config.StoreConfig
	logger zerolog.Logger

	// locks serialize profile mutation per user. Two users may hash to
	// the same stripe; that only costs contention, never correctness.
	locks [lockStripes]sync.Mutex

	profileReads   atomic.Int64
	profileWrites  atomic.Int64
	eventsAppended atomic.Int64
	duplicates     atomic.Int64

	mu         sync.RWMutex
	lastAppend time.Time
	closed     bool
}

// Open creates a BadgerStore at the configured path. An empty path
// opens an in-memory database, used by tests.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func Open(cfg config.StoreConfig, logger zerolog.Logger) (*BadgerStore, error) {
	var opts badger.Options
	if cfg.Path == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(cfg.Path).WithSyncWrites(cfg.SyncWrites)
	}
	opts = opts.WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %q: %w", cfg.Path, err)
	}

	return &BadgerStore{
		db:     db,
		cfg:    cfg,
		logger: logger.With().Str("component", "store").Logger(),
	}, nil
}

// Read returns a consistent snapshot of the user's profile.
func (s *BadgerStore) Read(ctx context.Context, userID string) (*model.UserProfile, error) {
	if err := s.checkOpen(ctx); err != nil {
		return nil, err
	}
	s.profileReads.Add(1)

	var profile *model.UserProfile
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(profileKey(userID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			profile = &model.UserProfile{}
			return json.Unmarshal(val, profile)
		})
	})
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("read profile %s: %w", userID, err)
	}

	return profile, nil
}

// AtomicUpdate applies fn under the user's write lock and persists the
// result in one transaction. Fail closed: any error leaves the stored
// profile untouched.
func (s *BadgerStore) AtomicUpdate(ctx context.Context, userID string, fn func(*model.UserProfile) error) (*model.UserProfile, error) {
	if err := s.checkOpen(ctx); err != nil {
		return nil, err
	}

	lock := s.lockFor(userID)
	lock.Lock()
	defer lock.Unlock()

	profile, err := s.Read(ctx, userID)
	if err == ErrProfileNotFound {
		profile = model.NewUserProfile(userID)
	} else if err != nil {
		return nil, err
	}

	if err := fn(profile); err != nil {
		return nil, err
	}
	profile.UpdatedAt = time.Now().UTC()

	payload, err := json.Marshal(profile)
	if err != nil {
		return nil, fmt.Errorf("marshal profile %s: %w", userID, err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(profileKey(userID), payload)
	})
	if err != nil {
		return nil, fmt.Errorf("write profile %s: %w", userID, err)
	}

	s.profileWrites.Add(1)
	return profile, nil
}

// AppendEvent durably appends a raw event, deduplicating by event ID.
func (s *BadgerStore) AppendEvent(ctx context.Context, event *model.FeedbackEvent) (bool, error) {
	if err := s.checkOpen(ctx); err != nil {
		return false, err
	}
	if event.EventID == "" {
		return false, fmt.Errorf("append event: empty event ID")
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return false, fmt.Errorf("marshal event %s: %w", event.EventID, err)
	}

	dedupeKey := []byte(prefixDedupe + event.EventID)
	applied := false

	err = s.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(dedupeKey)
		if err == nil {
			return nil // Already appended; idempotent no-op.
		}
		if err != badger.ErrKeyNotFound {
			return err
		}

		dedupe := badger.NewEntry(dedupeKey, nil)
		if s.cfg.DedupeTTL > 0 {
			dedupe = dedupe.WithTTL(s.cfg.DedupeTTL)
		}
		if err := txn.SetEntry(dedupe); err != nil {
			return err
		}
		if err := txn.Set(eventKey(event.UserID, event.Timestamp, event.EventID), payload); err != nil {
			return err
		}
		applied = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("append event %s: %w", event.EventID, err)
	}

	if applied {
		s.eventsAppended.Add(1)
		s.mu.Lock()
		s.lastAppend = time.Now()
		s.mu.Unlock()
	} else {
		s.duplicates.Add(1)
		s.logger.Debug().Str("event_id", event.EventID).Msg("duplicate event ignored")
	}

	return applied, nil
}

// RecentEvents returns up to limit of the user's events, newest first.
func (s *BadgerStore) RecentEvents(ctx context.Context, userID string, limit int) ([]model.FeedbackEvent, error) {
	if err := s.checkOpen(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, nil
	}

	prefix := []byte(prefixEvent + userID + ":")
	events := make([]model.FeedbackEvent, 0, limit)

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.ValidForPrefix(prefix) && len(events) < limit; it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var ev model.FeedbackEvent
				if err := json.Unmarshal(val, &ev); err != nil {
					return err
				}
				events = append(events, ev)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list events for %s: %w", userID, err)
	}

	return events, nil
}

// Users lists every user ID with a stored profile.
func (s *BadgerStore) Users(ctx context.Context) ([]string, error) {
	if err := s.checkOpen(ctx); err != nil {
		return nil, err
	}

	prefix := []byte(prefixProfile)
	var users []string

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.ValidForPrefix(prefix); it.Next() {
			key := it.Item().Key()
			users = append(users, string(key[len(prefix):]))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	return users, nil
}

// PublishMetrics refreshes the store gauges: profile count and the
// on-disk LSM and value log sizes.
func (s *BadgerStore) PublishMetrics(ctx context.Context) error {
	users, err := s.Users(ctx)
	if err != nil {
		return err
	}
	lsm, vlog := s.db.Size()

	metrics.StoreProfiles.Set(float64(len(users)))
	metrics.StoreLSMBytes.Set(float64(lsm))
	metrics.StoreVlogBytes.Set(float64(vlog))
	return nil
}

// Stats returns store counters.
func (s *BadgerStore) Stats() Stats {
	s.mu.RLock()
	lastAppend := s.lastAppend
	s.mu.RUnlock()

	return Stats{
		ProfileReads:      s.profileReads.Load(),
		ProfileWrites:     s.profileWrites.Load(),
		EventsAppended:    s.eventsAppended.Load(),
		DuplicatesIgnored: s.duplicates.Load(),
		LastAppend:        lastAppend,
	}
}

// Close releases the underlying database.
func (s *BadgerStore) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	return s.db.Close()
}

// checkOpen validates the store and request context.
func (s *BadgerStore) checkOpen(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStoreClosed
	}
	return nil
}

// lockFor returns the write lock stripe for a user.
func (s *BadgerStore) lockFor(userID string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(userID)) //nolint:errcheck // fnv never errors
	return &s.locks[h.Sum32()&(lockStripes-1)]
}

// profileKey builds the profile key for a user.
func profileKey(userID string) []byte {
	return []byte(prefixProfile + userID)
}

// eventKey builds an event key ordered newest-first within the user's
// prefix by storing the bitwise complement of the timestamp.
func eventKey(userID string, ts time.Time, eventID string) []byte {
	reversed := ^uint64(ts.UnixNano())
	return []byte(fmt.Sprintf("%s%s:%020d:%s", prefixEvent, userID, reversed, eventID))
}

// Ensure BadgerStore implements the interface.
var _ ProfileStore = (*BadgerStore)(nil)
