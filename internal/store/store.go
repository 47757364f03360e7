// Quillfeed - Personalization and Recommendation Engine for Reading Content
// Copyright 2026 Quillfeed Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/quillfeed/quillfeed

// Package store provides the durable profile store: per-user preference
// state plus an append-only feedback event log, backed by BadgerDB.
//
// The store enforces the core durability contract of the feedback
// pipeline: a raw event is fsync-persisted by AppendEvent before any
// fold touches the aggregate profile, and profile mutation is atomic
// per user. Store failures are fatal for the calling request; no
// partial profile is ever written.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/quillfeed/quillfeed/internal/model"
)

var (
	// ErrProfileNotFound is returned when no profile exists for a user.
	ErrProfileNotFound = errors.New("profile not found")

	// ErrStoreClosed is returned after Close.
	ErrStoreClosed = errors.New("store closed")
)

// ProfileStore is the durable per-user state contract consumed by the
// personalization core.
type ProfileStore interface {
	// Read returns a consistent snapshot of the user's profile.
	// Returns ErrProfileNotFound for users with no history.
	Read(ctx context.Context, userID string) (*model.UserProfile, error)

	// AtomicUpdate applies fn to the user's profile under the per-user
	// write lock and persists the result in a single transaction.
	// A missing profile is materialized with neutral defaults before
	// fn runs. If fn returns an error nothing is written.
	AtomicUpdate(ctx context.Context, userID string, fn func(*model.UserProfile) error) (*model.UserProfile, error)

	// AppendEvent durably appends a raw feedback event to the log.
	// Returns applied=false when the event ID was already appended
	// (idempotent replay); duplicates are not an error.
	AppendEvent(ctx context.Context, event *model.FeedbackEvent) (applied bool, err error)

	// RecentEvents returns up to limit of the user's most recent
	// events, newest first. Used for context inference.
	RecentEvents(ctx context.Context, userID string, limit int) ([]model.FeedbackEvent, error)

	// Users lists every user ID with a stored profile. Used by the
	// evolution sweep.
	Users(ctx context.Context) ([]string, error)

	// Stats returns store counters for observability.
	Stats() Stats

	// Close releases the underlying database.
	Close() error
}

// Stats contains store counters for monitoring.
type Stats struct {
	// ProfileReads is the total number of Read operations.
	ProfileReads int64

	// ProfileWrites is the total number of committed AtomicUpdates.
	ProfileWrites int64

	// EventsAppended is the number of events durably appended.
	EventsAppended int64

	// DuplicatesIgnored is the number of replayed event IDs skipped.
	DuplicatesIgnored int64

	// LastAppend is the time of the last successful append.
	LastAppend time.Time
}
