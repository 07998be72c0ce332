package middleware

import (
	"context"
	"errors"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/splitledger/internal/auth"
	"github.com/mmynk/splitledger/internal/metrics"
)

type ping struct{}

func request(header string) *connect.Request[ping] {
	req := connect.NewRequest(&ping{})
	if header != "" {
		req.Header().Set("Authorization", header)
	}
	return req
}

// echoUser answers with the acting user in a response header.
func echoUser(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
	resp := connect.NewResponse(&ping{})
	resp.Header().Set("X-User", GetUserID(ctx))
	return resp, nil
}

func TestRequireAuth(t *testing.T) {
	jwtManager := auth.NewJWTManager("test-secret", time.Hour)
	token, err := jwtManager.Generate("alice")
	require.NoError(t, err)

	handler := RequireAuth(jwtManager)(echoUser)

	tests := []struct {
		name   string
		header string
		user   string
	}{
		{name: "valid token", header: "Bearer " + token, user: "alice"},
		{name: "missing header"},
		{name: "wrong scheme", header: "Basic " + token},
		{name: "empty bearer", header: "Bearer "},
		{name: "garbage", header: "Bearer not-a-jwt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := handler(context.Background(), request(tt.header))
			if tt.user == "" {
				assert.Equal(t, connect.CodeUnauthenticated, connect.CodeOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.user, resp.Header().Get("X-User"))
		})
	}
}

func TestWithUserID(t *testing.T) {
	assert.Empty(t, GetUserID(context.Background()))
	assert.Equal(t, "bob", GetUserID(WithUserID(context.Background(), "bob")))
}

func TestLoggingInterceptor_PassesThrough(t *testing.T) {
	failing := func(context.Context, connect.AnyRequest) (connect.AnyResponse, error) {
		return nil, connect.NewError(connect.CodeNotFound, errors.New("missing"))
	}

	_, err := LoggingInterceptor()(failing)(context.Background(), request(""))
	assert.Equal(t, connect.CodeNotFound, connect.CodeOf(err))

	resp, err := LoggingInterceptor()(echoUser)(WithUserID(context.Background(), "carol"), request(""))
	require.NoError(t, err)
	assert.Equal(t, "carol", resp.Header().Get("X-User"))
}

func TestMetricsInterceptor(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	ok := MetricsInterceptor(m)(echoUser)
	_, err := ok(context.Background(), request(""))
	require.NoError(t, err)

	failing := MetricsInterceptor(m)(func(context.Context, connect.AnyRequest) (connect.AnyResponse, error) {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("bad"))
	})
	_, err = failing(context.Background(), request(""))
	require.Error(t, err)

	// one series per (procedure, code)
	assert.Equal(t, 2, testutil.CollectAndCount(reg, "splitledger_rpc_duration_seconds"))
}
