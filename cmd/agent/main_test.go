package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andrei1031/dash-q-v2-front-sub000/config"
)

func TestClientIDSurvivesRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "client-id")
	c := config.CustomerConfig{ClientIDFile: path}

	first, err := resolveClientID(c)
	require.NoError(t, err)
	_, err = uuid.Parse(first)
	require.NoError(t, err)

	second, err := resolveClientID(c)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestClientIDPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client-id")

	id, err := resolveClientID(config.CustomerConfig{ClientID: "device-1", CustomerID: "cust-1", ClientIDFile: path})
	require.NoError(t, err)
	assert.Equal(t, "device-1", id)

	a, err := resolveClientID(config.CustomerConfig{CustomerID: "cust-1", ClientIDFile: path})
	require.NoError(t, err)
	b, err := resolveClientID(config.CustomerConfig{CustomerID: "cust-1"})
	require.NoError(t, err)
	assert.Equal(t, a, b)

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "no file is written when the id is configured")
}

func TestClientIDFileRewrittenWhenUnreadable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client-id")
	require.NoError(t, os.WriteFile(path, []byte("not-a-uuid"), 0o600))

	id, err := resolveClientID(config.CustomerConfig{ClientIDFile: path})
	require.NoError(t, err)

	again, err := resolveClientID(config.CustomerConfig{ClientIDFile: path})
	require.NoError(t, err)
	assert.Equal(t, id, again)
}

func TestClientIDRequiresSomeSource(t *testing.T) {
	_, err := resolveClientID(config.CustomerConfig{})
	assert.Error(t, err)
}
