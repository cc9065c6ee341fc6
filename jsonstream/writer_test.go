package jsonstream_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/n4jet/neo4j-export/jsonstream"
)

func TestWriter_ObjectWithPrimitives(t *testing.T) {
	w := jsonstream.New(0, 0)
	w.BeginObject()
	w.Name("a")
	w.WriteI64(42)
	w.Name("b")
	w.WriteString("hi")
	w.Name("c")
	w.WriteBool(true)
	w.Name("d")
	w.WriteNull()
	w.EndObject()

	require.Equal(t, 0, w.OpenFrames())
	var got map[string]any
	require.NoError(t, json.Unmarshal(w.Bytes(), &got))
	require.InDelta(t, 42, got["a"], 0)
	require.Equal(t, "hi", got["b"])
	require.Equal(t, true, got["c"])
	require.Nil(t, got["d"])
}

func TestWriter_NestedArrayAndObject(t *testing.T) {
	w := jsonstream.New(0, 0)
	w.BeginObject()
	w.Name("items")
	w.BeginArray()
	w.WriteI64(1)
	w.WriteI64(2)
	w.BeginObject()
	w.Name("nested")
	w.WriteBool(false)
	w.EndObject()
	w.EndArray()
	w.EndObject()

	var got map[string]any
	require.NoError(t, json.Unmarshal(w.Bytes(), &got))
	items := got["items"].([]any)
	require.Len(t, items, 3)
	require.Equal(t, map[string]any{"nested": false}, items[2])
}

func TestWriter_StringEscaping(t *testing.T) {
	w := jsonstream.New(0, 0)
	w.WriteString("line\nbreak\tand\"quote\\backslash\x01ctrl")

	var got string
	require.NoError(t, json.Unmarshal(w.Bytes(), &got))
	require.Equal(t, "line\nbreak\tand\"quote\\backslash\x01ctrl", got)
}

func TestWriter_NonBMPSurrogatePair(t *testing.T) {
	w := jsonstream.New(0, 0)
	w.WriteString("\U0001F600") // emoji, outside BMP

	var got string
	require.NoError(t, json.Unmarshal(w.Bytes(), &got))
	require.Equal(t, "\U0001F600", got)
}

func TestWriter_Reset_ReusesCapacity(t *testing.T) {
	w := jsonstream.New(1, 0)
	w.WriteString("hello")
	require.Greater(t, w.BytesWrittenSinceLastReset(), 0)

	w.Reset()
	require.Equal(t, 0, w.Len())
	require.Equal(t, 0, w.BytesWrittenSinceLastReset())
}

func TestWriter_CloseAllFrames_ProducesValidJSON(t *testing.T) {
	w := jsonstream.New(0, 0)
	w.BeginObject()
	w.Name("a")
	w.WriteI64(1)
	w.Name("b")
	w.BeginArray()
	w.WriteI64(2)
	// Simulate a mid-record failure: close everything without proper EndArray/EndObject.
	w.CloseAllFrames()

	require.Equal(t, 0, w.OpenFrames())
	var got map[string]any
	require.NoError(t, json.Unmarshal(w.Bytes(), &got))
}

func TestWriter_HardCapDetection(t *testing.T) {
	w := jsonstream.New(0, 8)
	w.WriteString("this string is definitely longer than eight bytes")
	require.True(t, w.OverHardCap())
}

func TestFloatIsFinite(t *testing.T) {
	require.True(t, jsonstream.FloatIsFinite(1.5))
	require.False(t, jsonstream.FloatIsFinite(0.0/zero()))
}

func zero() float64 { return 0 }
