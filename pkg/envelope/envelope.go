// Package envelope encodes the request envelope that the gateway hands to
// backend workers over the message bus. Field names are the wire contract:
// backend workers parse the msgpack map by name, so they must stay stable.
package envelope

import (
	"github.com/vmihailenco/msgpack/v5"
)

// URI carries the structured pieces of the original request URI. Fields
// that may hold non-UTF-8 bytes (path, query string, host, hash) are typed
// as []byte so the msgpack codec emits the raw-binary family instead of a
// string, matching what backend workers expect to unpack.
type URI struct {
	PathOriginal []byte            `msgpack:"path_original"`
	Scheme       []byte            `msgpack:"scheme"`
	Path         []byte            `msgpack:"path"`
	QueryString  []byte            `msgpack:"query_string"`
	Host         []byte            `msgpack:"host"`
	Hash         []byte            `msgpack:"hash"`
	Args         map[string][]byte `msgpack:"args"`
}

// Envelope is the request event published to the request topic. It is
// produced once per HTTP request and discarded after encoding.
type Envelope struct {
	Type        string            `msgpack:"type"`
	AccessToken string            `msgpack:"access_token"`
	Method      string            `msgpack:"method"`
	UserValues  map[string]string `msgpack:"user_values"`
	URI         URI               `msgpack:"uri"`
	Body        []byte            `msgpack:"body"`
	ClientIP    string            `msgpack:"client_ip"`
}

// Encode serializes the envelope to its msgpack map representation. Struct
// field order does not matter to consumers: they look fields up by name.
func Encode(e *Envelope) ([]byte, error) {
	return msgpack.Marshal(e)
}
