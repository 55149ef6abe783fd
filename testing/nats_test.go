package testing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestStartEmbeddedNATS(t *testing.T) {
	ns, nc := StartEmbeddedNATS(t)

	require.NotNil(t, ns)
	require.True(t, nc.IsConnected())
	require.True(t, ns.ReadyForConnections(1*time.Second))
	require.True(t, ns.JetStreamEnabled())
}

func TestStartEmbeddedNATS_ParallelTests(t *testing.T) {
	t.Parallel()

	for range 3 {
		t.Run("parallel", func(t *testing.T) {
			t.Parallel()

			_, nc := StartEmbeddedNATS(t)
			require.True(t, nc.IsConnected())
		})
	}
}

func TestCreateJetStreamKV(t *testing.T) {
	_, nc := StartEmbeddedNATS(t)
	kv := CreateJetStreamKV(t, nc, "crm-test")

	_, err := kv.Put(t.Context(), "contact.1", []byte(`{"id":"1"}`))
	require.NoError(t, err)

	entry, err := kv.Get(t.Context(), "contact.1")
	require.NoError(t, err)
	require.JSONEq(t, `{"id":"1"}`, string(entry.Value()))

	status, err := kv.Status(t.Context())
	require.NoError(t, err)
	require.Equal(t, "crm-test", status.Bucket())
	require.Zero(t, status.TTL())
}

func TestRecordingLogger(t *testing.T) {
	logger := NewRecordingLogger()

	logger.Debug("move dropped", "contact_id", "c-1")
	logger.Error("move failed", "attempt", 3)

	require.True(t, logger.Has("DEBUG", "move dropped"))
	require.False(t, logger.Has("INFO", "move dropped"))

	entries := logger.Entries()
	require.Len(t, entries, 2)
	require.Equal(t, "ERROR: move failed attempt=3", entries[1].String())
}
