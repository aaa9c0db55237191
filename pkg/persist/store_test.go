package persist

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/go-drift/widgetkit/pkg/errors"
	"github.com/go-drift/widgetkit/pkg/store"
)

func openStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "widgets.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func rec(value string, counter uint64, session string) store.Record {
	return store.Record{Value: json.RawMessage(value), Stamp: store.Stamp{Counter: counter, Session: session}}
}

func tombstone(counter uint64, session string) store.Record {
	return store.Record{Deleted: true, Stamp: store.Stamp{Counter: counter, Session: session}}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s := openStore(t)

	snap := store.DocumentSnapshot{
		Document: "board",
		Instances: map[string]store.InstanceSnapshot{
			"counter": {State: map[string]store.Record{
				"count": rec("41", 7, "a"),
				"label": rec(`"clicks"`, 2, "b"),
			}},
			"poll": {Maps: map[string]map[string]store.Record{
				"votes": {
					"u1": rec(`"yes"`, 3, "a"),
					"u2": tombstone(5, "b"),
				},
			}},
		},
	}
	n, err := s.Save(ctx, snap)
	require.NoError(t, err)
	require.Equal(t, 4, n)

	loaded, err := s.Load(ctx, "board")
	require.NoError(t, err)
	require.Equal(t, snap, loaded)
	require.Equal(t, store.Stamp{Counter: 7, Session: "a"}, loaded.MaxStamp())

	var sv int
	require.NoError(t, s.DB().QueryRowContext(ctx, `SELECT value FROM records WHERE entry_key = 'count'`).Scan(&sv))
	require.Equal(t, 41, sv)
}

func TestSaveIsLastWriterWins(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	newer := store.DocumentSnapshot{
		Document: "doc",
		Instances: map[string]store.InstanceSnapshot{
			"w": {State: map[string]store.Record{"n": rec("5", 10, "b")}},
		},
	}
	older := store.DocumentSnapshot{
		Document: "doc",
		Instances: map[string]store.InstanceSnapshot{
			"w": {State: map[string]store.Record{
				"n": rec("3", 10, "a"),
				"m": rec("1", 1, "a"),
			}},
		},
	}

	_, err := s.Save(ctx, newer)
	require.NoError(t, err)
	n, err := s.Save(ctx, older)
	require.NoError(t, err)
	require.Equal(t, 1, n, "only the new slot is written")

	loaded, err := s.Load(ctx, "doc")
	require.NoError(t, err)
	require.JSONEq(t, "5", string(loaded.Instances["w"].State["n"].Value))
	require.JSONEq(t, "1", string(loaded.Instances["w"].State["m"].Value))

	n, err = s.Save(ctx, newer)
	require.NoError(t, err)
	require.Zero(t, n, "saving the same snapshot twice changes nothing")
}

func TestTombstoneSurvivesStaleSave(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	deleted := store.DocumentSnapshot{
		Document: "doc",
		Instances: map[string]store.InstanceSnapshot{
			"w": {Maps: map[string]map[string]store.Record{"tags": {"x": tombstone(4, "a")}}},
		},
	}
	stale := store.DocumentSnapshot{
		Document: "doc",
		Instances: map[string]store.InstanceSnapshot{
			"w": {Maps: map[string]map[string]store.Record{"tags": {"x": rec("true", 2, "b")}}},
		},
	}
	_, err := s.Save(ctx, deleted)
	require.NoError(t, err)
	_, err = s.Save(ctx, stale)
	require.NoError(t, err)

	loaded, err := s.Load(ctx, "doc")
	require.NoError(t, err)
	entry := loaded.Instances["w"].Maps["tags"]["x"]
	require.True(t, entry.Deleted)
	require.Empty(t, entry.Value)

	doc := store.NewDocument("doc")
	doc.Restore(loaded)
	b, ok := doc.Lookup("w")
	require.True(t, ok)
	require.False(t, b.Maps.Has("tags", "x"))
}

func TestLoadUnknownDocument(t *testing.T) {
	s := openStore(t)
	_, err := s.Load(context.Background(), "missing")
	require.ErrorIs(t, err, ErrUnknownDocument)
}

func TestSaveRequiresDocument(t *testing.T) {
	s := openStore(t)
	_, err := s.Save(context.Background(), store.DocumentSnapshot{})
	var werr *errors.WidgetError
	require.ErrorAs(t, err, &werr)
	require.Equal(t, errors.KindStorage, werr.Kind)
}

func TestDocumentsAndDelete(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	for _, id := range []string{"b", "a"} {
		_, err := s.Save(ctx, store.DocumentSnapshot{
			Document: id,
			Instances: map[string]store.InstanceSnapshot{
				"w": {State: map[string]store.Record{"n": rec("1", 1, "s")}},
			},
		})
		require.NoError(t, err)
	}
	_, err := s.Save(ctx, store.DocumentSnapshot{Document: "empty"})
	require.NoError(t, err)

	docs, err := s.Documents(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 3)
	require.Equal(t, "a", docs[0].ID)
	require.Equal(t, 1, docs[0].Records)
	require.Equal(t, "empty", docs[2].ID)
	require.Zero(t, docs[2].Records)
	require.False(t, docs[0].UpdatedAt.IsZero())

	require.NoError(t, s.Delete(ctx, "a"))
	require.ErrorIs(t, s.Delete(ctx, "a"), ErrUnknownDocument)

	var count int
	require.NoError(t, s.DB().QueryRowContext(ctx, `SELECT COUNT(*) FROM records WHERE document = 'a'`).Scan(&count))
	require.Zero(t, count, "records cascade with their document")

	loaded, err := s.Load(ctx, "empty")
	require.NoError(t, err)
	require.Equal(t, store.DocumentSnapshot{Document: "empty"}, loaded)
}

func TestMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "widgets.db")
	require.NoError(t, RunMigrations(path))
	require.NoError(t, RunMigrations(path))

	db, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	version, dirty, err := SchemaVersion(db)
	require.NoError(t, err)
	require.Equal(t, 1, version)
	require.False(t, dirty)
}
