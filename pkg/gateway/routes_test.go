package gateway_test

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-social/pkg/gateway"
)

func mustURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func TestTable_Resolve(t *testing.T) {
	table, err := gateway.NewTable(
		gateway.Route{Prefix: "/v1", Upstream: mustURL(t, "http://fallback"), TargetPrefix: "/api"},
		gateway.Route{Prefix: "/v1/content", Upstream: mustURL(t, "http://content"), TargetPrefix: "/api/content"},
		gateway.Route{Prefix: "/v1/content/admin/", Upstream: mustURL(t, "http://admin"), TargetPrefix: "/internal"},
	)
	require.NoError(t, err)

	tests := []struct {
		path     string
		upstream string
		rewrite  string
	}{
		{"/v1/content", "content", "/api/content"},
		{"/v1/content/", "content", "/api/content/"},
		{"/v1/content/123", "content", "/api/content/123"},
		{"/v1/content/admin/stats", "admin", "/internal/stats"},
		{"/v1/contentx", "fallback", "/api/contentx"},
		{"/v1/media/1", "fallback", "/api/media/1"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			r, ok := table.Resolve(tt.path)
			require.True(t, ok)
			assert.Equal(t, tt.upstream, r.Upstream.Host)
			assert.Equal(t, tt.rewrite, r.RewritePath(tt.path))
		})
	}

	_, ok := table.Resolve("/v2/content")
	assert.False(t, ok)
	_, ok = table.Resolve("/v10")
	assert.False(t, ok)
}

func TestNewTable_Invalid(t *testing.T) {
	_, err := gateway.NewTable(gateway.Route{Prefix: "/v1/x"})
	assert.Error(t, err)

	_, err = gateway.NewTable(
		gateway.Route{Prefix: "/v1/x", Upstream: mustURL(t, "http://a")},
		gateway.Route{Prefix: "/v1/x/", Upstream: mustURL(t, "http://b")},
	)
	assert.Error(t, err)
}
