package collector

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opensheets/companion/internal/common"
	"github.com/opensheets/companion/internal/model"
	"github.com/opensheets/companion/internal/service"
)

func TestNewClient_ValidatesURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{name: "https", url: "https://sheets.example.com", wantErr: false},
		{name: "http", url: "http://localhost:8080", wantErr: false},
		{name: "trailing slash trimmed", url: "https://sheets.example.com/", wantErr: false},
		{name: "missing scheme", url: "sheets.example.com", wantErr: true},
		{name: "wrong scheme", url: "ftp://sheets.example.com", wantErr: true},
		{name: "empty", url: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewClient(tt.url)
			if tt.wantErr {
				assert.ErrorIs(t, err, common.ErrInvalidConfig)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, client)
		})
	}
}

func TestHealth(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/health", r.URL.Path)
		assert.Empty(t, r.Header.Get("Authorization"))

		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":  "ok",
			"name":    "OpenSheets",
			"version": "2.3.1",
		})
	}))
	defer server.Close()

	client, err := NewClient(server.URL)
	require.NoError(t, err)

	info, err := client.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", info.Status)
	assert.Equal(t, "OpenSheets", info.Name)
	assert.Equal(t, "2.3.1", info.Version)
}

func TestVerifyToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/auth/device/verify", r.URL.Path)
		assert.Equal(t, "Bearer device-token", r.Header.Get("Authorization"))

		_ = json.NewEncoder(w).Encode(map[string]any{
			"valid":     true,
			"tokenId":   "tok-1",
			"tokenName": "Pixel 7",
		})
	}))
	defer server.Close()

	client, err := NewClient(server.URL)
	require.NoError(t, err)

	info, err := client.VerifyToken(context.Background(), "device-token")
	require.NoError(t, err)
	assert.Equal(t, "tok-1", info.TokenID)
	assert.Equal(t, "Pixel 7", info.TokenName)
}

func TestVerifyToken_Invalid(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"valid": false,
			"error": "token revoked",
		})
	}))
	defer server.Close()

	client, err := NewClient(server.URL)
	require.NoError(t, err)

	_, err = client.VerifyToken(context.Background(), "stale-token")
	assert.ErrorIs(t, err, common.ErrUnauthorized)
	assert.Contains(t, err.Error(), "token revoked")
}

func TestRefreshToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/auth/device/refresh", r.URL.Path)
		assert.Equal(t, "Bearer refresh-1", r.Header.Get("Authorization"))

		_ = json.NewEncoder(w).Encode(map[string]any{
			"accessToken":  "access-2",
			"refreshToken": "refresh-2",
		})
	}))
	defer server.Close()

	client, err := NewClient(server.URL)
	require.NoError(t, err)

	pair, err := client.RefreshToken(context.Background(), "refresh-1")
	require.NoError(t, err)
	assert.Equal(t, "access-2", pair.AccessToken)
	assert.Equal(t, "refresh-2", pair.RefreshToken)
}

func TestRefreshToken_KeepsOldRefreshTokenWhenOmitted(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"accessToken": "access-2",
		})
	}))
	defer server.Close()

	client, err := NewClient(server.URL)
	require.NoError(t, err)

	pair, err := client.RefreshToken(context.Background(), "refresh-1")
	require.NoError(t, err)
	assert.Equal(t, "access-2", pair.AccessToken)
	assert.Equal(t, "refresh-1", pair.RefreshToken)
}

func TestRefreshToken_MissingAccessToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{})
	}))
	defer server.Close()

	client, err := NewClient(server.URL)
	require.NoError(t, err)

	_, err = client.RefreshToken(context.Background(), "refresh-1")
	assert.ErrorIs(t, err, common.ErrMalformedReply)
}

func sampleRecord() model.NotificationRecord {
	amount := 45.90
	merchant := "PADARIA CENTRAL"
	card := "1234"
	direction := model.DirectionExpense
	title := "Nubank"

	return model.NotificationRecord{
		ID:                    "n1",
		SourceID:              "com.nu.production",
		SourceDisplayName:     "Nubank",
		RawTitle:              &title,
		RawText:               "Compra de R$ 45,90 aprovada em PADARIA CENTRAL para cartão final 1234",
		NotificationTimestamp: time.UnixMilli(1700000000000),
		CaptureTimestamp:      time.UnixMilli(1700000001000),
		SyncStatus:            model.SyncStatusPending,
		Parsed: model.ParsedTransaction{
			Amount:         &amount,
			MerchantName:   &merchant,
			CardLastDigits: &card,
			Direction:      &direction,
		},
	}
}

func TestSubmit(t *testing.T) {
	var received map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/inbox", r.URL.Path)
		assert.Equal(t, "Bearer access-1", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		assert.NoError(t, json.NewDecoder(r.Body).Decode(&received))

		_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "id": "n1"})
	}))
	defer server.Close()

	client, err := NewClient(server.URL)
	require.NoError(t, err)

	require.NoError(t, client.Submit(context.Background(), "access-1", sampleRecord()))

	assert.Equal(t, "n1", received["id"])
	assert.Equal(t, "com.nu.production", received["sourceApp"])
	assert.Equal(t, "Nubank", received["sourceAppName"])
	assert.InDelta(t, 45.90, received["amount"], 0.001)
	assert.Equal(t, "PADARIA CENTRAL", received["merchantName"])
	assert.Equal(t, "1234", received["cardLastDigits"])
	assert.Equal(t, string(model.DirectionExpense), received["transactionType"])
	assert.InDelta(t, float64(1700000000000), received["notificationTimestamp"], 0.1)
	assert.InDelta(t, float64(1700000001000), received["captureTimestamp"], 0.1)
}

func TestSubmit_ServerRejection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": false,
			"error":   "inbox full",
		})
	}))
	defer server.Close()

	client, err := NewClient(server.URL)
	require.NoError(t, err)

	err = client.Submit(context.Background(), "access-1", sampleRecord())
	assert.ErrorIs(t, err, common.ErrServerRejected)
	assert.Contains(t, err.Error(), "inbox full")
}

func TestSubmit_Unauthorized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client, err := NewClient(server.URL)
	require.NoError(t, err)

	err = client.Submit(context.Background(), "stale", sampleRecord())
	assert.ErrorIs(t, err, common.ErrUnauthorized)
}

func TestSubmitBatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/inbox/batch", r.URL.Path)

		var req map[string][]map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Len(t, req["notifications"], 2)

		_ = json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]any{
				{"id": "n1", "success": true},
				{"id": "n2", "success": false, "error": "duplicate entry"},
			},
		})
	}))
	defer server.Close()

	client, err := NewClient(server.URL)
	require.NoError(t, err)

	first := sampleRecord()
	second := sampleRecord()
	second.ID = "n2"

	results, err := client.SubmitBatch(context.Background(), "access-1",
		[]model.NotificationRecord{first, second})
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "n1", results[0].NotificationID)
	assert.True(t, results[0].OK)
	assert.Equal(t, "n2", results[1].NotificationID)
	assert.False(t, results[1].OK)
	assert.Equal(t, "duplicate entry", results[1].Error)
}

func TestSubmitBatch_ResultCountMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]any{
				{"id": "n1", "success": true},
			},
		})
	}))
	defer server.Close()

	client, err := NewClient(server.URL)
	require.NoError(t, err)

	first := sampleRecord()
	second := sampleRecord()
	second.ID = "n2"

	_, err = client.SubmitBatch(context.Background(), "access-1",
		[]model.NotificationRecord{first, second})
	assert.ErrorIs(t, err, common.ErrMalformedReply)
}

func TestDo_TransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {}))
	server.Close()

	client, err := NewClient(server.URL)
	require.NoError(t, err)

	err = client.Submit(context.Background(), "access-1", sampleRecord())
	assert.ErrorIs(t, err, common.ErrTransport)
}

func fastRetryOpts() service.RetryOptions {
	return service.RetryOptions{
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	}
}

func TestHealth_RetriesTransportFailures(t *testing.T) {
	var mu sync.Mutex
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		mu.Lock()
		attempts++
		n := attempts
		mu.Unlock()

		if n < 3 {
			hj, ok := w.(http.Hijacker)
			if assert.True(t, ok) {
				conn, _, hjErr := hj.Hijack()
				if assert.NoError(t, hjErr) {
					_ = conn.Close()
				}
			}
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "ok", "name": "OpenSheets"})
	}))
	defer server.Close()

	client, err := NewClient(server.URL)
	require.NoError(t, err)
	client.retryOpts = fastRetryOpts()

	info, err := client.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", info.Status)

	mu.Lock()
	assert.Equal(t, 3, attempts)
	mu.Unlock()
}

func TestHealth_TransportFailureExhaustsRetries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {}))
	server.Close()

	client, err := NewClient(server.URL)
	require.NoError(t, err)
	client.retryOpts = fastRetryOpts()

	_, err = client.Health(context.Background())
	assert.ErrorIs(t, err, common.ErrMaxRetries)
}

func TestVerifyToken_RejectionNotRetried(t *testing.T) {
	var mu sync.Mutex
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		mu.Lock()
		attempts++
		mu.Unlock()
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client, err := NewClient(server.URL)
	require.NoError(t, err)
	client.retryOpts = fastRetryOpts()

	_, err = client.VerifyToken(context.Background(), "stale")
	assert.ErrorIs(t, err, common.ErrUnauthorized)

	mu.Lock()
	assert.Equal(t, 1, attempts)
	mu.Unlock()
}

func TestDo_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("boom"))
	}))
	defer server.Close()

	client, err := NewClient(server.URL)
	require.NoError(t, err)

	_, err = client.Health(context.Background())
	assert.ErrorIs(t, err, common.ErrServerRejected)
	assert.Contains(t, err.Error(), "boom")
}

func TestAmountSerializedWithTwoDecimals(t *testing.T) {
	amount := amountJSON(100.0)
	data, err := json.Marshal(&amount)
	require.NoError(t, err)
	assert.Equal(t, "100.00", string(data))

	amount = amountJSON(45.9)
	data, err = json.Marshal(&amount)
	require.NoError(t, err)
	assert.Equal(t, "45.90", string(data))
}
