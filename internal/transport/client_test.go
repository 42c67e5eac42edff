package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newBridge spins up a fake bridge. Received message requests land in sink.
func newBridge(t *testing.T, qr []byte, messageStatus int, sink *[]messageRequest, hits *atomic.Int32) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("POST /session", func(w http.ResponseWriter, r *http.Request) {
		var req sessionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.NotEmpty(t, req.Name)

		json.NewEncoder(w).Encode(sessionResponse{
			SessionID: "sess-" + req.Name,
			Status:    "open",
			QRPNG:     qr,
		})
	})
	mux.HandleFunc("POST /messages", func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			hits.Add(1)
		}
		if messageStatus != http.StatusOK {
			http.Error(w, "nope", messageStatus)
			return
		}
		var req messageRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if sink != nil {
			*sink = append(*sink, req)
		}
		w.Write([]byte(`{}`))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(t *testing.T, endpoint, dataDir string) *Client {
	t.Helper()

	client, err := NewClient(Config{
		Name:          "VENTAS",
		Endpoint:      endpoint,
		APIKey:        "test-key",
		DataDir:       dataDir,
		Timeout:       5 * time.Second,
		MaxRetries:    0,
		MaxConcurrent: 4,
	})
	require.NoError(t, err)
	return client
}

func TestNewClientValidation(t *testing.T) {
	_, err := NewClient(Config{Endpoint: "http://x"})
	assert.Error(t, err, "missing bot name must fail")

	_, err = NewClient(Config{Name: "VENTAS"})
	assert.Error(t, err, "missing endpoint must fail")
}

func TestInstanceBeforeConnect(t *testing.T) {
	client := newTestClient(t, "http://localhost:1", t.TempDir())

	_, err := client.Instance()
	require.ErrorIs(t, err, ErrNotConnected)
}

func TestConnectPersistsPairingArtifact(t *testing.T) {
	dataDir := t.TempDir()
	srv := newBridge(t, []byte("png-bytes"), http.StatusOK, nil, nil)
	client := newTestClient(t, srv.URL, dataDir)

	require.NoError(t, client.Connect(context.Background()))

	sender, err := client.Instance()
	require.NoError(t, err)
	assert.NotNil(t, sender)

	qr, err := os.ReadFile(PairingArtifactPath(dataDir, "VENTAS"))
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(qr))
}

func TestConnectWithoutQRWritesNothing(t *testing.T) {
	dataDir := t.TempDir()
	srv := newBridge(t, nil, http.StatusOK, nil, nil)
	client := newTestClient(t, srv.URL, dataDir)

	require.NoError(t, client.Connect(context.Background()))

	_, err := os.Stat(PairingArtifactPath(dataDir, "VENTAS"))
	assert.True(t, os.IsNotExist(err))
}

func TestSendMessage(t *testing.T) {
	var sink []messageRequest
	srv := newBridge(t, nil, http.StatusOK, &sink, nil)
	client := newTestClient(t, srv.URL, t.TempDir())

	require.NoError(t, client.Connect(context.Background()))

	payload := map[string]string{"text": "hi"}
	require.NoError(t, client.SendMessage(context.Background(), "5551234567@c.us", payload))

	require.Len(t, sink, 1)
	assert.Equal(t, "5551234567@c.us", sink[0].Recipient)
	assert.Equal(t, "sess-VENTAS", sink[0].SessionID)
	assert.NotEmpty(t, sink[0].RequestID)

	stats := client.GetStats()
	assert.Equal(t, uint64(1), stats.TotalRequests)
	assert.Equal(t, uint64(1), stats.SuccessRequests)
	assert.True(t, stats.Connected)
}

func TestSendMessageBeforeConnect(t *testing.T) {
	srv := newBridge(t, nil, http.StatusOK, nil, nil)
	client := newTestClient(t, srv.URL, t.TempDir())

	err := client.SendMessage(context.Background(), "555@c.us", map[string]string{"text": "hi"})
	require.ErrorIs(t, err, ErrNotConnected)
}

func TestSendMessageClientErrorNotRetried(t *testing.T) {
	var hits atomic.Int32
	srv := newBridge(t, nil, http.StatusBadRequest, nil, &hits)

	client, err := NewClient(Config{
		Name:          "VENTAS",
		Endpoint:      srv.URL,
		DataDir:       t.TempDir(),
		Timeout:       5 * time.Second,
		MaxRetries:    3,
		MaxConcurrent: 4,
	})
	require.NoError(t, err)
	require.NoError(t, client.Connect(context.Background()))

	sendErr := client.SendMessage(context.Background(), "555@c.us", map[string]string{"text": "hi"})
	require.Error(t, sendErr)

	assert.Equal(t, int32(1), hits.Load(), "4xx responses must not be retried")

	stats := client.GetStats()
	assert.Equal(t, uint64(1), stats.FailedRequests)
	assert.Equal(t, uint64(0), stats.TotalRetries)
}
