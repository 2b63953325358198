package relay

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xaenox/commentgen/internal/identity"
	"github.com/xaenox/commentgen/internal/messaging"
	"github.com/xaenox/commentgen/internal/models"
	"github.com/xaenox/commentgen/internal/prefstore"
)

// failingSetStore rejects writes to make identity persistence fail.
type failingSetStore struct {
	*prefstore.MemoryStore
}

func (s failingSetStore) Set(ctx context.Context, key string, value []byte) error {
	return errors.New("disk full")
}

type endpointStub struct {
	mu       sync.Mutex
	requests []models.GenerationRequest
	auth     []string
	calls    atomic.Int32
	status   int
	body     string
}

func (e *endpointStub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	e.calls.Add(1)
	var req models.GenerationRequest
	_ = json.NewDecoder(r.Body).Decode(&req)
	e.mu.Lock()
	e.requests = append(e.requests, req)
	e.auth = append(e.auth, r.Header.Get("Authorization"))
	e.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if e.status != 0 {
		w.WriteHeader(e.status)
	}
	_, _ = w.Write([]byte(e.body))
}

func newRelay(t *testing.T, store prefstore.Store, stub *endpointStub) *Relay {
	t.Helper()
	srv := httptest.NewServer(stub)
	t.Cleanup(srv.Close)
	return New(Config{EndpointURL: srv.URL, AnonKey: "anon-key", Timeout: 5 * time.Second},
		prefstore.NewPrefs(store), srv.Client(), zap.NewNop())
}

func TestResolveIdentity_CreatesWhenAbsent(t *testing.T) {
	store := prefstore.NewMemoryStore()
	r := newRelay(t, store, &endpointStub{})
	ctx := context.Background()

	id, err := r.ResolveIdentity(ctx)
	require.NoError(t, err)
	require.True(t, identity.Valid(id))

	stored, found, err := prefstore.NewPrefs(store).UserID(ctx)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, id, stored)

	again, err := r.ResolveIdentity(ctx)
	require.NoError(t, err)
	assert.Equal(t, id, again, "a valid identity is never regenerated")
}

func TestResolveIdentity_RepairsMalformed(t *testing.T) {
	ctx := context.Background()
	malformed := [][]byte{
		[]byte(`"user_1699999999_abc"`),
		[]byte(`"3f2504e0-4f89-01d3-9a0c-0305e82c3301"`),
		[]byte(`""`),
		[]byte(`12345`),
		[]byte(`not json at all`),
	}

	for _, raw := range malformed {
		t.Run(string(raw), func(t *testing.T) {
			store := prefstore.NewMemoryStore()
			require.NoError(t, store.Set(ctx, prefstore.KeyUserID, raw))
			r := newRelay(t, store, &endpointStub{})

			id, err := r.ResolveIdentity(ctx)
			require.NoError(t, err)
			require.True(t, identity.Valid(id))

			stored, found, err := prefstore.NewPrefs(store).UserID(ctx)
			require.NoError(t, err)
			require.True(t, found)
			assert.Equal(t, id, stored)
		})
	}
}

func TestResolveIdentity_WriteFailureStillReturnsFreshValue(t *testing.T) {
	r := newRelay(t, failingSetStore{prefstore.NewMemoryStore()}, &endpointStub{})

	id, err := r.ResolveIdentity(context.Background())
	require.NoError(t, err)
	assert.True(t, identity.Valid(id))
}

func TestGenerate_Success(t *testing.T) {
	store := prefstore.NewMemoryStore()
	stub := &endpointStub{body: `{"generatedComment":"Congrats on the launch!"}`}
	r := newRelay(t, store, stub)

	reply := r.Generate(context.Background(), messaging.GenerateCommentData{
		PostCaption: "Excited to launch our new product!",
		Tone:        "professional",
		Model:       "gpt-4o-mini",
	})

	require.True(t, reply.Success, reply.Error)
	assert.Equal(t, "Congrats on the launch!", reply.Comment)
	require.EqualValues(t, 1, stub.calls.Load())

	req := stub.requests[0]
	assert.Equal(t, "Excited to launch our new product!", req.PostCaption)
	assert.Equal(t, "professional", req.Tone)
	assert.Equal(t, "gpt-4o-mini", req.Model)
	assert.Empty(t, req.Hint)
	assert.True(t, identity.Valid(req.UserID))
	assert.Equal(t, "Bearer anon-key", stub.auth[0])
}

func TestGenerate_Failures(t *testing.T) {
	tests := []struct {
		name    string
		stub    *endpointStub
		wantErr string
	}{
		{
			name:    "non-2xx status",
			stub:    &endpointStub{status: http.StatusInternalServerError, body: `{"error":"Failed to generate comment"}`},
			wantErr: "HTTP error! status: 500",
		},
		{
			name:    "error field in body",
			stub:    &endpointStub{body: `{"error":"quota exceeded"}`},
			wantErr: "quota exceeded",
		},
		{
			name:    "undecodable body",
			stub:    &endpointStub{body: `<html>`},
			wantErr: "failed to decode response",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := newRelay(t, prefstore.NewMemoryStore(), tc.stub)
			reply := r.Generate(context.Background(), messaging.GenerateCommentData{PostCaption: "x", Tone: "professional", Model: "gpt-4o"})
			assert.False(t, reply.Success)
			assert.Contains(t, reply.Error, tc.wantErr)
			assert.EqualValues(t, 1, tc.stub.calls.Load(), "no automatic retry")
		})
	}
}

func TestGenerate_NetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	r := New(Config{EndpointURL: url}, prefstore.NewPrefs(prefstore.NewMemoryStore()), nil, zap.NewNop())
	reply := r.Generate(context.Background(), messaging.GenerateCommentData{PostCaption: "x"})
	assert.False(t, reply.Success)
	assert.NotEmpty(t, reply.Error)
}

func TestHandleMessage(t *testing.T) {
	stub := &endpointStub{body: `{"generatedComment":"ok"}`}
	r := newRelay(t, prefstore.NewMemoryStore(), stub)
	ctx := context.Background()

	msg, err := messaging.NewMessage(messaging.ActionGenerateComment, messaging.GenerateCommentData{PostCaption: "p", Tone: "friendly", Model: "gpt-4o", Hint: "shorter"})
	require.NoError(t, err)
	reply := r.HandleMessage(ctx, msg)
	require.True(t, reply.Success)
	assert.Equal(t, "shorter", stub.requests[0].Hint)

	reply = r.HandleMessage(ctx, messaging.Message{Action: "insertComment"})
	assert.False(t, reply.Success)
	assert.Contains(t, reply.Error, "unknown action")

	reply = r.HandleMessage(ctx, messaging.Message{Action: messaging.ActionGenerateComment, Data: []byte(`[1,2]`)})
	assert.False(t, reply.Success)
	assert.Contains(t, reply.Error, "invalid generateComment payload")
}

func TestGenerate_ConcurrentRequestsShareOneIdentity(t *testing.T) {
	store := prefstore.NewMemoryStore()
	stub := &endpointStub{body: `{"generatedComment":"ok"}`}
	r := newRelay(t, store, stub)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			reply := r.Generate(context.Background(), messaging.GenerateCommentData{PostCaption: "p"})
			assert.True(t, reply.Success)
		}()
	}
	wg.Wait()

	require.Len(t, stub.requests, 10)
	stored, _, err := prefstore.NewPrefs(store).UserID(context.Background())
	require.NoError(t, err)
	for _, req := range stub.requests {
		assert.Equal(t, stored, req.UserID)
	}
}
