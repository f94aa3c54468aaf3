package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLevels(t *testing.T) {
	tests := []struct {
		level    string
		expected logrus.Level
		wantErr  bool
	}{
		{level: "", expected: logrus.InfoLevel},
		{level: "debug", expected: logrus.DebugLevel},
		{level: "WARN", expected: logrus.WarnLevel},
		{level: "loud", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			l, err := New(Config{Level: tt.level, Console: &bytes.Buffer{}})
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, l.GetLevel())
		})
	}
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Config{JSONFormat: true, Console: &buf})
	require.NoError(t, err)

	l.WithField("records", 3).Info("Commit log loaded")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "Commit log loaded", entry["msg"])
	assert.Equal(t, float64(3), entry["records"])
}

func TestFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "bicmine.log")
	var console bytes.Buffer

	l, err := New(Config{OutputFile: path, Console: &console})
	require.NoError(t, err)
	assert.Equal(t, path, l.FilePath())

	l.Info("hello")
	require.NoError(t, l.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello")
	assert.Contains(t, console.String(), "hello")
}

func TestRotation(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bicmine.log")
	require.NoError(t, os.WriteFile(path, []byte(strings.Repeat("x", 64)), 0644))
	require.NoError(t, os.WriteFile(path+".1", []byte("older"), 0644))

	l, err := New(Config{OutputFile: path, MaxSize: 32, MaxBackups: 3, Console: &bytes.Buffer{}})
	require.NoError(t, err)
	require.NoError(t, l.Close())

	rotated, err := os.ReadFile(path + ".1")
	require.NoError(t, err)
	assert.Len(t, rotated, 64)

	older, err := os.ReadFile(path + ".2")
	require.NoError(t, err)
	assert.Equal(t, "older", string(older))
}

func TestDiscard(t *testing.T) {
	l := Discard()
	l.Info("dropped")
	assert.NotNil(t, l)
}
