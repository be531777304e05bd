package envelope

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

func TestEncodeRoundTripsThroughMsgpackMap(t *testing.T) {
	env := &Envelope{
		Type:        "/api/v1/users/:uid",
		AccessToken: "token-123",
		Method:      "GET",
		UserValues:  map[string]string{"uid": "42"},
		URI: URI{
			PathOriginal: []byte("/api/v1/users/42?include=portfolios"),
			Scheme:       []byte("https"),
			Path:         []byte("/api/v1/users/42"),
			QueryString:  []byte("include=portfolios"),
			Host:         []byte("api.example.com"),
			Hash:         []byte{},
			Args:         map[string][]byte{"include": []byte("portfolios")},
		},
		Body:     []byte(`{"name":"test"}`),
		ClientIP: "203.0.113.9",
	}

	encoded, err := Encode(env)
	require.NoError(t, err)
	require.NotEmpty(t, encoded)

	var decoded map[string]interface{}
	require.NoError(t, msgpack.Unmarshal(encoded, &decoded))

	require.Equal(t, "/api/v1/users/:uid", decoded["type"])
	require.Equal(t, "token-123", decoded["access_token"])
	require.Equal(t, "GET", decoded["method"])
	require.Equal(t, "203.0.113.9", decoded["client_ip"])

	uri, ok := decoded["uri"].(map[string]interface{})
	require.True(t, ok, "uri must decode as a map")
	require.Equal(t, []byte("https"), uri["scheme"])
	require.Equal(t, []byte("/api/v1/users/42"), uri["path"])
}

func TestEncodeEmptyEnvelope(t *testing.T) {
	encoded, err := Encode(&Envelope{})
	require.NoError(t, err)
	require.NotEmpty(t, encoded)
}
