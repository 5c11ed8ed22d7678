package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/demetori/deme/sys"
	"github.com/stretchr/testify/require"
)

func TestSQLiteStore(t *testing.T) {
	db, err := sys.OpenDatabase(context.Background(), filepath.Join(t.TempDir(), "events.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	exerciseStore(t, NewSQLite(db))
}

func TestSQLiteMemberStore(t *testing.T) {
	db, err := sys.OpenDatabase(context.Background(), filepath.Join(t.TempDir(), "members.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	exerciseMemberStore(t, NewSQLiteMembers(db))
}
