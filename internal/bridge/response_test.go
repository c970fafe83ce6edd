package bridge

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResponse_Decode(t *testing.T) {
	resp := &Response{Raw: json.RawMessage(`{"name":"worker","count":3}`)}

	var out struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}

	require.NoError(t, resp.Decode(&out))
	require.Equal(t, "worker", out.Name)
	require.Equal(t, 3, out.Count)
}

func TestResponse_Object(t *testing.T) {
	obj := &Response{Value: map[string]any{"a": 1.0}}
	require.Equal(t, map[string]any{"a": 1.0}, obj.Object())

	scalar := &Response{Value: "text"}
	require.Nil(t, scalar.Object())
}
