package store

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestMongoStore needs a reachable server, e.g. MONGO_TEST_URI=mongodb://localhost:27017.
func TestMongoStore(t *testing.T) {
	uri := os.Getenv("MONGO_TEST_URI")
	if uri == "" {
		t.Skip("MONGO_TEST_URI not set")
	}

	ctx := context.Background()
	database := fmt.Sprintf("deme_test_%d", time.Now().UnixNano())
	m, err := ConnectMongo(ctx, uri, database)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = m.client.Database(database).Drop(context.Background())
		_ = m.Close(context.Background())
	})

	t.Run("events", func(t *testing.T) { exerciseStore(t, m) })
	t.Run("members", func(t *testing.T) { exerciseMemberStore(t, m.Members()) })
}
