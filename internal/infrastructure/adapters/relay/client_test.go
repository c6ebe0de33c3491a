package relay

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nft-bridge/bridge_client/internal/domain/entities"
	domainerrors "github.com/nft-bridge/bridge_client/internal/domain/errors"
)

func newTestClient(url string) *Client {
	return NewClient(Config{
		BaseURL:           url,
		RequestsPerSecond: 1000,
		RetryBaseDelay:    time.Millisecond,
	}, zap.NewNop())
}

func writeEnvelope(w http.ResponseWriter, ok interface{}, errMsg string, code string) {
	resp := map[string]interface{}{}
	if errMsg != "" {
		resp["err"] = errMsg
	} else {
		resp["ok"] = ok
	}
	if code != "" {
		resp["code"] = code
	}
	_ = json.NewEncoder(w).Encode(resp)
}

func TestNewClient(t *testing.T) {
	logger := zap.NewNop()

	t.Run("fills default methods", func(t *testing.T) {
		client := NewClient(Config{BaseURL: "http://relay/"}, logger)
		assert.Equal(t, "http://relay", client.config.BaseURL)
		assert.Equal(t, DefaultMethods(), client.config.Methods)
		assert.Equal(t, defaultTimeout, client.config.Timeout)
	})

	t.Run("keeps custom methods", func(t *testing.T) {
		client := NewClient(Config{Methods: Methods{MonitorForward: "watch_a"}}, logger)
		assert.Equal(t, "watch_a", client.config.Methods.MonitorForward)
		assert.Equal(t, "monitor_evm_nft_reverse", client.config.Methods.MonitorReverse)
	})
}

func TestSubmitProof(t *testing.T) {
	t.Run("sends block number", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/call/update_block_number", r.URL.Path)

			var req struct {
				Args []uint64 `json:"args"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, []uint64{1234}, req.Args)
			writeEnvelope(w, nil, "", "")
		}))
		defer server.Close()

		err := newTestClient(server.URL).SubmitProof(context.Background(), 1234)
		require.NoError(t, err)
	})

	t.Run("conflict is relay busy", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusConflict)
			_, _ = w.Write([]byte(`{"message":"proof pending"}`))
		}))
		defer server.Close()

		err := newTestClient(server.URL).SubmitProof(context.Background(), 1)
		assert.ErrorIs(t, err, domainerrors.ErrRelayBusy)
		assert.True(t, domainerrors.IsRetryable(err))
	})

	t.Run("busy code in envelope is relay busy", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeEnvelope(w, nil, "previous proof still processing", CodeBusy)
		}))
		defer server.Close()

		err := newTestClient(server.URL).SubmitProof(context.Background(), 1)
		assert.ErrorIs(t, err, domainerrors.ErrRelayBusy)
	})

	t.Run("other relay error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeEnvelope(w, nil, "block too old", "")
		}))
		defer server.Close()

		err := newTestClient(server.URL).SubmitProof(context.Background(), 1)
		assert.ErrorIs(t, err, domainerrors.ErrRelay)
		assert.False(t, domainerrors.IsRetryable(err))
	})

	t.Run("retries server errors", func(t *testing.T) {
		var calls int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if atomic.AddInt32(&calls, 1) < 3 {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			writeEnvelope(w, nil, "", "")
		}))
		defer server.Close()

		err := newTestClient(server.URL).SubmitProof(context.Background(), 1)
		require.NoError(t, err)
		assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	})

	t.Run("persistent server errors are transport errors", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer server.Close()

		err := newTestClient(server.URL).SubmitProof(context.Background(), 1)
		assert.ErrorIs(t, err, domainerrors.ErrTransport)
	})
}

func TestTriggerMonitor(t *testing.T) {
	var paths []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		writeEnvelope(w, "started", "", "")
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	require.NoError(t, client.TriggerMonitor(context.Background(), entities.DirectionForward))
	require.NoError(t, client.TriggerMonitor(context.Background(), entities.DirectionReverse))

	assert.Equal(t, []string{"/call/monitor_evm_nft", "/call/monitor_evm_nft_reverse"}, paths)
}

func TestQueryRelease(t *testing.T) {
	t.Run("not yet sentinel is not an error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/call/holesky_txn", r.URL.Path)
			writeEnvelope(w, nil, "No transaction hash stored.", "")
		}))
		defer server.Close()

		hash, ready, err := newTestClient(server.URL).QueryRelease(context.Background(), entities.DirectionForward)
		require.NoError(t, err)
		assert.False(t, ready)
		assert.Empty(t, hash)
	})

	t.Run("returns release hash", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/call/sepolia_txn", r.URL.Path)
			writeEnvelope(w, "0xdead", "", "")
		}))
		defer server.Close()

		hash, ready, err := newTestClient(server.URL).QueryRelease(context.Background(), entities.DirectionReverse)
		require.NoError(t, err)
		assert.True(t, ready)
		assert.Equal(t, "0xdead", hash)
	})

	t.Run("empty ok is not ready", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeEnvelope(w, "", "", "")
		}))
		defer server.Close()

		_, ready, err := newTestClient(server.URL).QueryRelease(context.Background(), entities.DirectionForward)
		require.NoError(t, err)
		assert.False(t, ready)
	})

	t.Run("other errors surface", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"message":"unknown canister"}`))
		}))
		defer server.Close()

		_, _, err := newTestClient(server.URL).QueryRelease(context.Background(), entities.DirectionForward)
		assert.ErrorIs(t, err, domainerrors.ErrRelay)
	})

	t.Run("sentinel in an http error body is an error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte("upstream said: No transaction hash stored."))
		}))
		defer server.Close()

		_, ready, err := newTestClient(server.URL).QueryRelease(context.Background(), entities.DirectionForward)
		assert.False(t, ready)
		assert.ErrorIs(t, err, domainerrors.ErrRelay)
	})

	t.Run("sentinel in a server error is an error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte("No transaction hash stored."))
		}))
		defer server.Close()

		_, _, err := newTestClient(server.URL).QueryRelease(context.Background(), entities.DirectionForward)
		assert.ErrorIs(t, err, domainerrors.ErrTransport)
	})
}

func TestAuthToken(t *testing.T) {
	secret := "relay-secret"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		token, err := jwt.ParseWithClaims(raw, &jwt.RegisteredClaims{}, func(*jwt.Token) (interface{}, error) {
			return []byte(secret), nil
		})
		require.NoError(t, err)
		claims := token.Claims.(*jwt.RegisteredClaims)
		assert.Equal(t, "bridge-test", claims.Issuer)
		assert.Equal(t, "/call/update_block_number", claims.Subject)
		writeEnvelope(w, nil, "", "")
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, AuthSecret: secret, AuthIssuer: "bridge-test"}, zap.NewNop())
	require.NoError(t, client.SubmitProof(context.Background(), 5))
}

func TestClassifyKeepsCancellation(t *testing.T) {
	assert.ErrorIs(t, classify("x", context.Canceled), context.Canceled)
	assert.ErrorIs(t, classify("x", &ErrorResponse{StatusCode: http.StatusTooManyRequests}), domainerrors.ErrRelayBusy)
}
