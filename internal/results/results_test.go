// File: internal/results/results_test.go
package results

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadPrompts(t *testing.T) {
	path := writeFile(t, t.TempDir(), "prompts.csv",
		"id,text\n1,What is the capital of France?\n2,\"Tell me a joke, please\"\n")

	prompts, err := LoadPrompts(path)
	require.NoError(t, err)
	require.Len(t, prompts, 2)
	assert.Equal(t, PromptRecord{ID: "1", Text: "What is the capital of France?"}, prompts[0])
	assert.Equal(t, PromptRecord{ID: "2", Text: "Tell me a joke, please"}, prompts[1])
}

func TestLoadPromptsColumnOrderAndExtras(t *testing.T) {
	path := writeFile(t, t.TempDir(), "prompts.csv",
		"category,text,id\ngeo,Name a river,r1\n")

	prompts, err := LoadPrompts(path)
	require.NoError(t, err)
	require.Len(t, prompts, 1)
	assert.Equal(t, PromptRecord{ID: "r1", Text: "Name a river"}, prompts[0])
}

func TestLoadPromptsMissingColumns(t *testing.T) {
	path := writeFile(t, t.TempDir(), "prompts.csv", "id,question\n1,huh\n")

	_, err := LoadPrompts(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing required columns")
}

func TestLoadPromptsEmptyID(t *testing.T) {
	path := writeFile(t, t.TempDir(), "prompts.csv", "id,text\n,orphan row\n")

	_, err := LoadPrompts(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty id")
}

func TestLoadPromptsDuplicateID(t *testing.T) {
	// A reused id would collide in the results file and confuse resume, so
	// the load fails before any prompt runs.
	path := writeFile(t, t.TempDir(), "prompts.csv",
		"id,text\n1,first\n2,second\n1,third\n")

	_, err := LoadPrompts(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 4")
	assert.Contains(t, err.Error(), `duplicate id "1"`)
}

func TestLoadPromptsMissingFile(t *testing.T) {
	_, err := LoadPrompts(filepath.Join(t.TempDir(), "nope.csv"))
	assert.Error(t, err)
}

func TestSinkAppendCreatesHeaderOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.csv")
	sink := NewSink(path, zaptest.NewLogger(t))

	require.NoError(t, sink.Append(ResultRecord{ID: "1", Prompt: "q1", Reply: "a1"}))
	require.NoError(t, sink.Append(ResultRecord{ID: "2", Prompt: "q2", Reply: "a2, with a comma"}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "id,prompt,grok_reply\n1,q1,a1\n2,q2,\"a2, with a comma\"\n", string(data))
}

func TestSinkAppendToExistingFile(t *testing.T) {
	// Simulates resuming into a file left behind by an interrupted run: no
	// second header, records accumulate.
	dir := t.TempDir()
	path := writeFile(t, dir, "results.csv", "id,prompt,grok_reply\n1,q1,a1\n")

	sink := NewSink(path, zaptest.NewLogger(t))
	require.NoError(t, sink.Append(ResultRecord{ID: "2", Prompt: "q2", Reply: "a2"}))

	ids, err := CompletedIDs(path)
	require.NoError(t, err)
	assert.Equal(t, map[string]struct{}{"1": {}, "2": {}}, ids)
}

func TestSinkSurvivesSimulatedCrash(t *testing.T) {
	// Each Append stands alone: dropping the sink between writes (the crash
	// analogue, since no state is held open) must leave a loadable file.
	path := filepath.Join(t.TempDir(), "results.csv")

	require.NoError(t, NewSink(path, zaptest.NewLogger(t)).Append(ResultRecord{ID: "1", Prompt: "q", Reply: "a"}))
	require.NoError(t, NewSink(path, zaptest.NewLogger(t)).Append(ResultRecord{ID: "2", Prompt: "q", Reply: "a"}))

	ids, err := CompletedIDs(path)
	require.NoError(t, err)
	assert.Len(t, ids, 2)
}

func TestCompletedIDsMissingFile(t *testing.T) {
	ids, err := CompletedIDs(filepath.Join(t.TempDir(), "absent.csv"))
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestCompletedIDsMultilineReply(t *testing.T) {
	path := writeFile(t, t.TempDir(), "results.csv",
		"id,prompt,grok_reply\n1,q1,\"line one\nline two\"\n2,q2,a2\n")

	ids, err := CompletedIDs(path)
	require.NoError(t, err)
	assert.Equal(t, map[string]struct{}{"1": {}, "2": {}}, ids)
}

func TestDefaultFilename(t *testing.T) {
	at := time.Date(2026, 8, 30, 14, 7, 59, 0, time.UTC)
	assert.Equal(t, "results_2026-08-30_14-07.csv", DefaultFilename(at))
}
