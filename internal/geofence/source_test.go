package geofence

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andrei1031/dash-q-v2-front-sub000/internal/errors"
)

func TestReaderSourceSkipsBadLines(t *testing.T) {
	in := strings.NewReader(`{"lat":14.6,"lng":120.98,"at":"2026-03-01T10:00:00Z"}
not json
{"lat":14.61,"lng":120.99}
`)

	var got []Fix
	err := NewReaderSource(in).Watch(context.Background(), func(f Fix) {
		got = append(got, f)
	})
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.InDelta(t, 14.6, got[0].Lat, 1e-9)
	assert.Equal(t, 2026, got[0].At.Year())
	assert.False(t, got[1].At.IsZero())
}

func TestFileSourceUnavailable(t *testing.T) {
	err := NewFileSource("").Watch(context.Background(), func(Fix) {})
	assert.ErrorIs(t, err, errors.ErrGeolocationUnavailable)

	err = NewFileSource(filepath.Join(t.TempDir(), "missing.jsonl")).Watch(context.Background(), func(Fix) {})
	assert.ErrorIs(t, err, errors.ErrGeolocationUnavailable)
}
