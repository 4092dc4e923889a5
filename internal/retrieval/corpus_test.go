package retrieval

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCorpus(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return dir
}

func TestCorpusContextMatchesByKeyword(t *testing.T) {
	dir := writeCorpus(t, map[string]string{
		"alu/alu8.v":  "module alu8(input [7:0] a, b); // alu alu alu\nendmodule",
		"uart/tx.v":   "module uart_tx(input clk);\nendmodule",
		"notes/x.txt": "alu alu alu alu",
	})
	c := NewCorpus(dir, 5)

	out, err := c.Context(context.Background(), "an 8-bit ALU design")
	require.NoError(t, err)

	assert.Contains(t, out, "alu8.v")
	assert.Contains(t, out, "module alu8")
	// Non-Verilog files never contribute, however well they match.
	assert.NotContains(t, out, "x.txt")
	assert.NotContains(t, out, "uart_tx")
}

func TestCorpusContextRanksAndCaps(t *testing.T) {
	dir := writeCorpus(t, map[string]string{
		"a.v": "counter counter counter",
		"b.v": "counter counter",
		"c.v": "counter",
	})
	c := NewCorpus(dir, 2)

	out, err := c.Context(context.Background(), "counter")
	require.NoError(t, err)

	assert.Contains(t, out, "a.v")
	assert.Contains(t, out, "b.v")
	assert.NotContains(t, out, "c.v")
}

func TestCorpusContextNoMatches(t *testing.T) {
	dir := writeCorpus(t, map[string]string{"a.v": "module fifo; endmodule"})
	c := NewCorpus(dir, 5)

	out, err := c.Context(context.Background(), "barrel shifter")
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestCorpusContextEmptyQueryAndDir(t *testing.T) {
	c := NewCorpus("", 5)
	out, err := c.Context(context.Background(), "anything")
	require.NoError(t, err)
	assert.Empty(t, out)

	c = NewCorpus(t.TempDir(), 5)
	out, err = c.Context(context.Background(), "x") // single-char tokens are dropped
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestCorpusContextCancelled(t *testing.T) {
	dir := writeCorpus(t, map[string]string{"a.v": "module a; endmodule"})
	c := NewCorpus(dir, 5)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Context(ctx, "module")
	assert.Error(t, err)
}
