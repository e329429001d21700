package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/KOMKZ/go-yogan-cache/cache"
	"github.com/KOMKZ/go-yogan-cache/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validYAML = `
cache:
  max_entries: 10
durable:
  driver: memory
http:
  addr: 127.0.0.1:0
  mode: test
logger:
  enable_console: false
`

func configDir(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0o644))
	return dir
}

func execute(ctx context.Context, args ...string) (string, error) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	return out.String(), err
}

func TestValidate(t *testing.T) {
	dir := configDir(t, validYAML)
	out, err := execute(context.Background(), "validate", "-c", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "✅ engine")
	assert.Contains(t, out, "✅ http")
	assert.Contains(t, out, "✅ kafka")
	assert.Contains(t, out, filepath.Join(dir, "config.yaml"))
}

func TestValidate_ReportsEverySection(t *testing.T) {
	dir := configDir(t, `
durable:
  driver: etcd
kafka:
  enabled: true
`)
	out, err := execute(context.Background(), "validate", "--config", dir)
	require.Error(t, err)
	assert.Contains(t, out, "❌ engine")
	assert.Contains(t, out, "✅ http")
	assert.Contains(t, out, "❌ kafka")
	assert.Contains(t, out, "Brokers")
}

func TestReport_JSON(t *testing.T) {
	out, err := execute(context.Background(), "report", "-c", configDir(t, validYAML))
	require.NoError(t, err)

	var rep struct {
		Layers []metrics.LayerReport `json:"layers"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &rep))
	require.Len(t, rep.Layers, 2)
	assert.Equal(t, cache.LayerMemory, rep.Layers[0].Layer)
	assert.Equal(t, 10, rep.Layers[0].Capacity)
}

func TestReport_Text(t *testing.T) {
	out, err := execute(context.Background(), "report", "-c", configDir(t, validYAML), "-f", "text", "--warm=false")
	require.NoError(t, err)
	assert.Contains(t, out, "LAYER")
	assert.Contains(t, out, cache.LayerMemory)
	assert.Contains(t, out, cache.LayerDurable)

	_, err = execute(context.Background(), "report", "-c", configDir(t, validYAML), "-f", "yaml")
	assert.Error(t, err)
}

func TestServe_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := execute(ctx, "serve", "-c", configDir(t, validYAML), "--stop-timeout", "5s")
		done <- err
	}()

	time.Sleep(200 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("serve did not stop")
	}
}

func TestServe_InvalidConfig(t *testing.T) {
	_, err := execute(context.Background(), "serve", "-c", configDir(t, "durable:\n  driver: etcd\n"))
	assert.Error(t, err)
}
