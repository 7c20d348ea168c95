package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoutes(t *testing.T) {
	rs, err := routes(ServicesConfig{
		Identity: "http://identity:3001",
		Content:  "http://content:3002",
		Media:    "http://media:3003",
		Search:   "http://search:3004",
	})
	require.NoError(t, err)
	require.Len(t, rs, 4)

	byPrefix := map[string]bool{}
	for _, r := range rs {
		byPrefix[r.Prefix] = r.RequireIdentity
	}
	assert.Equal(t, map[string]bool{
		"/v1/auth":    false,
		"/v1/content": true,
		"/v1/media":   true,
		"/v1/search":  true,
	}, byPrefix)

	_, err = routes(ServicesConfig{Identity: "http://[::1", Content: "x", Media: "x", Search: "x"})
	assert.Error(t, err)
}
