package memory

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigStore_SetAndGet(t *testing.T) {
	store := NewConfigStore()

	require.NoError(t, store.Set("llm.model", "llama3"))
	require.NoError(t, store.Set("llm.model", "qwen2.5"))

	val, ok := store.Get("llm.model")
	assert.True(t, ok)
	assert.Equal(t, "qwen2.5", val)

	_, ok = store.Get("missing")
	assert.False(t, ok)
}

func TestConfigStore_Seeded(t *testing.T) {
	store := NewConfigStore(map[string]any{"pipeline.top_k": 5}, map[string]any{"pipeline.top_k": 9})

	assert.Equal(t, 9, store.GetInt("pipeline.top_k"))
}

func TestConfigStore_TypedGetters(t *testing.T) {
	store := NewConfigStore(map[string]any{
		"str":        "value",
		"int":        42,
		"int64":      int64(7),
		"float":      2.5,
		"int_str":    " 12 ",
		"float_str":  "0.25",
		"bool":       true,
		"bool_str":   "true",
		"bad_number": "many",
	})

	tests := []struct {
		key   string
		str   string
		i     int
		f     float64
		truth bool
	}{
		{key: "str", str: "value"},
		{key: "int", i: 42, f: 42},
		{key: "int64", i: 7, f: 7},
		{key: "float", i: 2, f: 2.5},
		{key: "int_str", str: " 12 ", i: 12, f: 12},
		{key: "float_str", str: "0.25", f: 0.25},
		{key: "bool", truth: true},
		{key: "bool_str", str: "true", truth: true},
		{key: "bad_number", str: "many"},
		{key: "missing"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			assert.Equal(t, tt.str, store.GetString(tt.key))
			assert.Equal(t, tt.i, store.GetInt(tt.key))
			assert.InDelta(t, tt.f, store.GetFloat(tt.key), 1e-9)
			assert.Equal(t, tt.truth, store.GetBool(tt.key))
		})
	}
}

func TestConfigStore_NoOps(t *testing.T) {
	store := NewConfigStore()

	assert.NoError(t, store.Save())
	assert.NoError(t, store.Load())
	assert.Equal(t, ":memory:", store.Path())
}

func TestConfigStore_Concurrency(t *testing.T) {
	store := NewConfigStore()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			key := fmt.Sprintf("key.%d", n)
			_ = store.Set(key, n)
			assert.Equal(t, n, store.GetInt(key))
		}(i)
	}
	wg.Wait()
}
