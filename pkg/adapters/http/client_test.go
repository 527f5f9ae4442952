package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aretw0/grove/pkg/domain"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL)
}

func TestCreateSession(t *testing.T) {
	var got createSessionRequest
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/sessions", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(createSessionResponse{SessionID: "s-1"})
	}))

	state := domain.StateMap{"tone": domain.String("formal")}
	id, err := c.CreateSession(context.Background(), "support-bot", state)
	require.NoError(t, err)
	require.Equal(t, "s-1", id)
	require.Equal(t, "support-bot", got.AgentID)
	require.Equal(t, "formal", got.State["tone"])
}

func TestCreateSessionRequiresAgent(t *testing.T) {
	c := NewClient("http://127.0.0.1:1")
	_, err := c.CreateSession(context.Background(), "", nil)
	require.Equal(t, domain.KindInvalidRequest, domain.KindOf(err))
}

func TestSendMessageResponseField(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat", r.URL.Path)
		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "s-1", req.SessionID)
		json.NewEncoder(w).Encode(map[string]string{"response": "hello"})
	}))

	reply, err := c.SendMessage(context.Background(), "s-1", "hi")
	require.NoError(t, err)
	require.Equal(t, "hello", reply)
}

func TestSendMessageTextFallback(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"text": "howdy"})
	}))

	reply, err := c.SendMessage(context.Background(), "s-1", "hi")
	require.NoError(t, err)
	require.Equal(t, "howdy", reply)
}

func TestSendMessageUnknownSession(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"detail": "Session not found"})
	}))

	_, err := c.SendMessage(context.Background(), "ghost", "hi")
	require.Equal(t, domain.KindSessionNotFound, domain.KindOf(err))
	require.Contains(t, err.Error(), "Session not found")
}

func TestStatusClassification(t *testing.T) {
	cases := []struct {
		status int
		want   domain.FailureKind
	}{
		{http.StatusBadRequest, domain.KindInvalidRequest},
		{http.StatusUnprocessableEntity, domain.KindInvalidRequest},
		{http.StatusNotFound, domain.KindSessionNotFound},
		{http.StatusInternalServerError, domain.KindRemoteError},
		{http.StatusBadGateway, domain.KindRemoteError},
		{http.StatusTooManyRequests, domain.KindRemoteError},
	}
	for _, tc := range cases {
		c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
		}))
		_, err := c.GetSession(context.Background(), "s-1")
		require.Equal(t, tc.want, domain.KindOf(err), "status %d", tc.status)
	}
}

func TestConnectionFailureIsUnreachable(t *testing.T) {
	// Reserved port, nothing listens there.
	c := NewClient("http://127.0.0.1:1", WithTimeout(200*time.Millisecond))
	_, err := c.SendMessage(context.Background(), "s-1", "hi")
	require.Equal(t, domain.KindUnreachable, domain.KindOf(err))
	require.True(t, domain.Retryable(err))
}

func TestTimeoutIsUnreachable(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(time.Second)
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := c.SendMessage(ctx, "s-1", "hi")
	require.Equal(t, domain.KindUnreachable, domain.KindOf(err))
}

func TestDeleteSessionIdempotent(t *testing.T) {
	calls := 0
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		require.Equal(t, http.MethodDelete, r.Method)
		require.Equal(t, "/sessions/s-1", r.URL.Path)
		if calls > 1 {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))

	require.NoError(t, c.DeleteSession(context.Background(), "s-1"))
	require.NoError(t, c.DeleteSession(context.Background(), "s-1"), "second delete must succeed silently")
}

func TestGetSessionPreservesIntegers(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"session_id":"s-1","agent_id":"a","state":{"count":9007199254740991}}`))
	}))

	s, err := c.GetSession(context.Background(), "s-1")
	require.NoError(t, err)

	n, ok := s.State["count"].AsInt()
	require.True(t, ok, "large whole numbers must stay integers")
	require.Equal(t, int64(9007199254740991), n)
}

func TestListSessionsFiltersByAgent(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/sessions", r.URL.Path)
		json.NewEncoder(w).Encode(listSessionsResponse{Sessions: []sessionResponse{
			{SessionID: "s-1", AgentID: "alpha"},
			{SessionID: "s-2", AgentID: "beta"},
			{SessionID: "s-3", AgentID: "alpha"},
		}})
	}))

	all, err := c.ListSessions(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, all, 3)

	alphas, err := c.ListSessions(context.Background(), "alpha")
	require.NoError(t, err)
	require.Len(t, alphas, 2)
	require.Equal(t, "s-1", alphas[0].ID)
	require.Equal(t, "s-3", alphas[1].ID)
}

func TestObserverSeesEveryCall(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	var ops []string
	var kinds []domain.FailureKind
	c.observe = func(op string, elapsed time.Duration, err error) {
		ops = append(ops, op)
		kinds = append(kinds, domain.KindOf(err))
	}

	_, _ = c.GetSession(context.Background(), "s-1")
	require.Equal(t, []string{"get_session"}, ops)
	require.Equal(t, []domain.FailureKind{domain.KindRemoteError}, kinds)
}
