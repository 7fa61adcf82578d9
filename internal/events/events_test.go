package events

import (
	"bytes"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmitWritesNewlineDelimitedJSON(t *testing.T) {
	var buf bytes.Buffer
	e := NewEmitter(&buf)

	require.NoError(t, e.Emit(Event{Kind: KindTableStarted, RunID: "run-1", Stage: "migrate", Table: "orders"}))
	require.NoError(t, e.Emit(Event{Kind: KindTableFinished, RunID: "run-1", Stage: "migrate", Table: "orders"}))

	lines := bytes.Split(bytes.TrimRight(buf.Bytes(), "\n"), []byte("\n"))
	require.Len(t, lines, 2)

	var first Event
	require.NoError(t, json.Unmarshal(lines[0], &first))
	assert.Equal(t, KindTableStarted, first.Kind)
	assert.Equal(t, "orders", first.Table)
}

func TestEmitStampsTimestampWhenZero(t *testing.T) {
	var buf bytes.Buffer
	e := NewEmitter(&buf)
	require.NoError(t, e.Emit(Event{Kind: KindWarning}))

	var ev Event
	require.NoError(t, json.Unmarshal(bytes.TrimRight(buf.Bytes(), "\n"), &ev))
	assert.False(t, ev.Timestamp.IsZero())
}

func TestEmitPreservesExplicitTimestamp(t *testing.T) {
	var buf bytes.Buffer
	e := NewEmitter(&buf)
	ts := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, e.Emit(Event{Kind: KindWarning, Timestamp: ts}))

	var ev Event
	require.NoError(t, json.Unmarshal(bytes.TrimRight(buf.Bytes(), "\n"), &ev))
	assert.True(t, ts.Equal(ev.Timestamp))
}

func TestEmitIsSafeForConcurrentUse(t *testing.T) {
	var buf bytes.Buffer
	e := NewEmitter(&buf)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = e.Emit(Event{Kind: KindTableProgress, Table: "t"})
		}()
	}
	wg.Wait()

	lines := bytes.Split(bytes.TrimRight(buf.Bytes(), "\n"), []byte("\n"))
	assert.Len(t, lines, 50)
	for _, l := range lines {
		var ev Event
		assert.NoError(t, json.Unmarshal(l, &ev))
	}
}
