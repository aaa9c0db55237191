package persist

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/go-drift/widgetkit/pkg/errors"
	"github.com/go-drift/widgetkit/pkg/replication"
	"github.com/go-drift/widgetkit/pkg/store"
)

// ErrUnknownDocument is returned by Load for a document that was never saved.
var ErrUnknownDocument = errors.New("persist: unknown document")

// DocumentInfo summarizes one stored document.
type DocumentInfo struct {
	ID        string
	UpdatedAt time.Time
	Records   int
}

// SQLiteStore persists document snapshots.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore migrates and opens the database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if err := RunMigrations(path); err != nil {
		return nil, storageError("persist.NewSQLiteStore", fmt.Errorf("migrate %s: %w", path, err))
	}
	db, err := Open(path)
	if err != nil {
		return nil, storageError("persist.NewSQLiteStore", err)
	}
	return &SQLiteStore{db: db}, nil
}

// DB returns the underlying database handle.
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Save merges snap into the stored document and returns the number of
// records that changed. Stored records with an equal or newer stamp win.
func (s *SQLiteStore) Save(ctx context.Context, snap store.DocumentSnapshot) (int, error) {
	if snap.Document == "" {
		return 0, storageError("persist.SQLiteStore.Save", errors.New("snapshot has no document id"))
	}
	changed := 0
	err := WithTx(ctx, s.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
		INSERT INTO documents(id, updated_at) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET updated_at=excluded.updated_at;
		`, snap.Document, Now()); err != nil {
			return err
		}
		stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO records(document, instance, scope, map_name, entry_key, value, counter, session, deleted)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(document, instance, scope, map_name, entry_key) DO UPDATE SET
			value=excluded.value,
			counter=excluded.counter,
			session=excluded.session,
			deleted=excluded.deleted
		WHERE excluded.counter > records.counter
			OR (excluded.counter = records.counter AND excluded.session > records.session);
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, w := range flatten(snap) {
			if w.Record.Stamp.Counter > math.MaxInt64 {
				return fmt.Errorf("%s: stamp counter overflows storage", w)
			}
			var value any
			if !w.Record.Deleted {
				value = string(w.Record.Value)
			}
			res, err := stmt.ExecContext(ctx,
				w.Document, w.Instance, string(w.Scope), w.Map, w.Key,
				value, int64(w.Record.Stamp.Counter), w.Record.Stamp.Session, w.Record.Deleted)
			if err != nil {
				return fmt.Errorf("save %s: %w", w, err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			changed += int(n)
		}
		return nil
	})
	if err != nil {
		return 0, storageError("persist.SQLiteStore.Save", err)
	}
	return changed, nil
}

// Load returns the stored snapshot of a document, tombstones included.
func (s *SQLiteStore) Load(ctx context.Context, document string) (store.DocumentSnapshot, error) {
	const op = "persist.SQLiteStore.Load"
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents WHERE id = ?`, document).Scan(&exists)
	if err != nil {
		return store.DocumentSnapshot{}, storageError(op, err)
	}
	if exists == 0 {
		return store.DocumentSnapshot{}, fmt.Errorf("%w: %q", ErrUnknownDocument, document)
	}

	rows, err := s.db.QueryContext(ctx, `
	SELECT instance, scope, map_name, entry_key, value, counter, session, deleted
	FROM records WHERE document = ?
	ORDER BY instance, scope, map_name, entry_key
	`, document)
	if err != nil {
		return store.DocumentSnapshot{}, storageError(op, err)
	}
	defer rows.Close()

	doc := store.NewDocument(document)
	for rows.Next() {
		var (
			w       = replication.Write{Document: document}
			scope   string
			value   sql.NullString
			counter int64
		)
		if err := rows.Scan(&w.Instance, &scope, &w.Map, &w.Key, &value, &counter, &w.Record.Stamp.Session, &w.Record.Deleted); err != nil {
			return store.DocumentSnapshot{}, storageError(op, err)
		}
		w.Scope = replication.Scope(scope)
		w.Record.Stamp.Counter = uint64(counter)
		if value.Valid {
			w.Record.Value = json.RawMessage(value.String)
		}
		if err := w.Validate(); err != nil {
			return store.DocumentSnapshot{}, storageError(op, err)
		}
		w.ApplyTo(doc.Bucket(w.Instance))
	}
	if err := rows.Err(); err != nil {
		return store.DocumentSnapshot{}, storageError(op, err)
	}
	return doc.Snapshot(), nil
}

// Documents lists the stored documents ordered by id.
func (s *SQLiteStore) Documents(ctx context.Context) ([]DocumentInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
	SELECT d.id, d.updated_at, COUNT(r.document)
	FROM documents d LEFT JOIN records r ON r.document = d.id
	GROUP BY d.id, d.updated_at
	ORDER BY d.id
	`)
	if err != nil {
		return nil, storageError("persist.SQLiteStore.Documents", err)
	}
	defer rows.Close()
	var out []DocumentInfo
	for rows.Next() {
		var info DocumentInfo
		if err := rows.Scan(&info.ID, &info.UpdatedAt, &info.Records); err != nil {
			return nil, storageError("persist.SQLiteStore.Documents", err)
		}
		out = append(out, info)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError("persist.SQLiteStore.Documents", err)
	}
	return out, nil
}

// Delete removes a document and its records.
func (s *SQLiteStore) Delete(ctx context.Context, document string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, document)
	if err != nil {
		return storageError("persist.SQLiteStore.Delete", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %q", ErrUnknownDocument, document)
	}
	return nil
}

// flatten lists every record of a snapshot as a write, in a stable order.
func flatten(snap store.DocumentSnapshot) []replication.Write {
	var out []replication.Write
	instances := make([]string, 0, len(snap.Instances))
	for id := range snap.Instances {
		instances = append(instances, id)
	}
	slices.Sort(instances)
	for _, id := range instances {
		inst := snap.Instances[id]
		for _, name := range sortedKeys(inst.State) {
			out = append(out, replication.Write{
				Document: snap.Document,
				Instance: id,
				Scope:    replication.ScopeState,
				Key:      name,
				Record:   inst.State[name],
			})
		}
		for _, mapName := range sortedKeys(inst.Maps) {
			entries := inst.Maps[mapName]
			for _, key := range sortedKeys(entries) {
				out = append(out, replication.Write{
					Document: snap.Document,
					Instance: id,
					Scope:    replication.ScopeMap,
					Map:      mapName,
					Key:      key,
					Record:   entries[key],
				})
			}
		}
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func storageError(op string, err error) *errors.WidgetError {
	return &errors.WidgetError{Op: op, Kind: errors.KindStorage, Err: err, Timestamp: time.Now()}
}
