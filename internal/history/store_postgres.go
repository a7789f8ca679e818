package history

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/sabbirahammad/currency/pkg/platform/sentinel"
)

var (
	postgresAppendDurationMs = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "currency_history_postgres_append_duration_ms",
		Help:    "Latency of record appends to the PostgreSQL store in milliseconds",
		Buckets: []float64{0.5, 1, 2.5, 5, 10, 25, 50, 100, 250},
	})
	postgresCorruptDocuments = promauto.NewCounter(prometheus.CounterOpts{
		Name: "currency_history_postgres_corrupt_documents_total",
		Help: "Stored documents skipped because they failed to decode",
	})
)

const (
	listenerMinReconnect = 2 * time.Second
	listenerMaxReconnect = time.Minute
	listenerPingEvery    = 90 * time.Second
)

// PostgresRecordStore persists detection records in PostgreSQL. Change feeds
// use LISTEN/NOTIFY; a dedicated listener connection per subscription keeps
// feeds isolated from the query pool.
type PostgresRecordStore struct {
	db  *sql.DB
	dsn string

	minReconnect time.Duration
	maxReconnect time.Duration
}

// PostgresRecordStoreOption configures a PostgresRecordStore instance.
type PostgresRecordStoreOption func(*PostgresRecordStore)

// WithListenerReconnect sets the listener reconnect backoff bounds.
// Integration tests use short intervals to observe reconnects quickly.
func WithListenerReconnect(minInterval, maxInterval time.Duration) PostgresRecordStoreOption {
	return func(s *PostgresRecordStore) {
		if minInterval > 0 {
			s.minReconnect = minInterval
		}
		if maxInterval > 0 {
			s.maxReconnect = maxInterval
		}
	}
}

// NewPostgresRecordStore constructs a PostgreSQL-backed record store.
// The DSN is required because listener connections are opened outside the
// *sql.DB pool.
func NewPostgresRecordStore(db *sql.DB, dsn string, opts ...PostgresRecordStoreOption) *PostgresRecordStore {
	store := &PostgresRecordStore{
		db:           db,
		dsn:          dsn,
		minReconnect: listenerMinReconnect,
		maxReconnect: listenerMaxReconnect,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(store)
		}
	}
	return store
}

// EnsureSchema creates the records table when it does not exist yet. The
// daemon owns its table, so this runs at startup instead of a migration step.
func (s *PostgresRecordStore) EnsureSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS currency_detections (
			scope         TEXT        NOT NULL,
			record_id     TEXT        NOT NULL,
			raw_timestamp TIMESTAMPTZ,
			document      JSONB       NOT NULL,
			PRIMARY KEY (scope, record_id)
		)
	`
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("ensure records schema: %w", err)
	}
	return nil
}

func (s *PostgresRecordStore) Append(ctx context.Context, scope Scope, doc Document) error {
	if err := scope.Validate(); err != nil {
		return err
	}

	start := time.Now()
	defer func() {
		postgresAppendDurationMs.Observe(float64(time.Since(start).Microseconds()) / 1000.0)
	}()

	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal record %s: %w", doc.ID, err)
	}

	query := `
		INSERT INTO currency_detections (scope, record_id, raw_timestamp, document)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (scope, record_id) DO UPDATE SET
			raw_timestamp = EXCLUDED.raw_timestamp,
			document = EXCLUDED.document
	`
	var rawTimestamp sql.NullTime
	if doc.RawTimestamp != nil {
		rawTimestamp = sql.NullTime{Time: *doc.RawTimestamp, Valid: true}
	}

	// The upsert and its notification commit together; pg_notify inside a
	// transaction is delivered only at commit, so subscribers never see a
	// poke for a record that failed to land.
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append %s: %w", doc.ID, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, query, scope.Key(), doc.ID, rawTimestamp, payload); err != nil {
		return fmt.Errorf("append record %s: %w", doc.ID, err)
	}
	if _, err := tx.ExecContext(ctx, `SELECT pg_notify($1, $2)`, notifyChannel(scope), doc.ID); err != nil {
		return fmt.Errorf("publish record %s: %w", doc.ID, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit append %s: %w", doc.ID, err)
	}
	return nil
}

func (s *PostgresRecordStore) List(ctx context.Context, scope Scope) ([]Document, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT document FROM currency_detections WHERE scope = $1`, scope.Key())
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		var doc Document
		if err := json.Unmarshal(raw, &doc); err != nil {
			// One undecodable document must not brick the whole view.
			postgresCorruptDocuments.Inc()
			continue
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	return docs, nil
}

func (s *PostgresRecordStore) Subscribe(ctx context.Context, scope Scope) (*Subscription, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}

	listener := pq.NewListener(s.dsn, s.minReconnect, s.maxReconnect, nil)
	if err := listener.Listen(notifyChannel(scope)); err != nil {
		_ = listener.Close()
		return nil, fmt.Errorf("listen for %s: %w", scope.Key(), err)
	}

	sub := newSubscription(func() {
		_ = listener.Close()
	})

	go func() {
		ping := time.NewTicker(listenerPingEvery)
		defer ping.Stop()
		for {
			select {
			case _, ok := <-listener.Notify:
				if !ok {
					sub.fail(fmt.Errorf("record feed ended: %w", sentinel.ErrUnavailable))
					return
				}
				// A nil notification arrives after a reconnect; either way
				// updates may have been missed, so poke a re-read.
				sub.notify()
			case <-ping.C:
				if err := listener.Ping(); err != nil {
					sub.fail(fmt.Errorf("record feed ping: %w", err))
					return
				}
			case <-ctx.Done():
				sub.Close()
				return
			}
		}
	}()

	sub.notify()
	return sub, nil
}

// notifyChannel derives a LISTEN-safe channel name for a scope. Channel
// names are capped at 63 bytes by the server, so the scope is hashed.
func notifyChannel(scope Scope) string {
	digest := sha256.Sum256([]byte(scope.Key()))
	return "currency_detections_" + hex.EncodeToString(digest[:8])
}
