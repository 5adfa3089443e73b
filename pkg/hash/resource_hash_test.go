package hash

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type doc struct {
	Hosts     []string `json:"hosts"`
	FetchedAt string   `json:"fetched_at"`
}

func TestCalculateVersionIgnoresMetadata(t *testing.T) {
	v1, err := CalculateVersion(doc{Hosts: []string{"h1"}, FetchedAt: "2026-01-01"})
	require.NoError(t, err)
	v2, err := CalculateVersion(doc{Hosts: []string{"h1"}, FetchedAt: "2026-02-02"})
	require.NoError(t, err)
	assert.Equal(t, v1, v2)

	v3, err := CalculateVersion(doc{Hosts: []string{"h1", "h2"}})
	require.NoError(t, err)
	assert.NotEqual(t, v1, v3)
}

func TestCalculateVersionRejectsNonObject(t *testing.T) {
	_, err := CalculateVersion([]string{"a"})
	assert.Error(t, err)
}
