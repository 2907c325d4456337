package persist

import (
	"bytes"
	"compress/gzip"
	"encoding/base64"
	"encoding/json"
	"io"
	"time"

	ferrors "git.ecosistema.dev/plataforma/statecore/internal/foundation/errors"
	"git.ecosistema.dev/plataforma/statecore/internal/state"
)

// Envelope is the stored wire format. Data holds the partial state tree as
// a JSON object, or a base64(gzip(JSON)) string when Compressed is set.
type Envelope struct {
	Data       json.RawMessage `json:"data"`
	Timestamp  int64           `json:"timestamp"` // epoch milliseconds
	Version    string          `json:"version"`
	Compressed bool            `json:"compressed"`
}

// Time returns the envelope timestamp as a time.Time.
func (e Envelope) Time() time.Time {
	return time.UnixMilli(e.Timestamp)
}

// EncodeEnvelope serializes a partial tree into envelope bytes.
func EncodeEnvelope(partial state.Tree, version string, compress bool, now time.Time) ([]byte, error) {
	data, err := json.Marshal(partial)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryPersistence, "marshal persisted state").Build()
	}

	if compress {
		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		if _, err := zw.Write(data); err != nil {
			return nil, ferrors.WrapError(err, ferrors.CategoryPersistence, "compress persisted state").Build()
		}
		if err := zw.Close(); err != nil {
			return nil, ferrors.WrapError(err, ferrors.CategoryPersistence, "compress persisted state").Build()
		}
		encoded := base64.StdEncoding.EncodeToString(buf.Bytes())
		data, err = json.Marshal(encoded)
		if err != nil {
			return nil, ferrors.WrapError(err, ferrors.CategoryPersistence, "encode compressed state").Build()
		}
	}

	env := Envelope{
		Data:       data,
		Timestamp:  now.UnixMilli(),
		Version:    version,
		Compressed: compress,
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryPersistence, "marshal envelope").Build()
	}
	return raw, nil
}

// DecodeEnvelope parses envelope bytes back into the partial tree it holds.
func DecodeEnvelope(raw []byte) (state.Tree, Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, Envelope{}, ferrors.WrapError(err, ferrors.CategoryPersistence, "unmarshal envelope").Build()
	}

	data := []byte(env.Data)
	if env.Compressed {
		var encoded string
		if err := json.Unmarshal(env.Data, &encoded); err != nil {
			return nil, env, ferrors.WrapError(err, ferrors.CategoryPersistence, "decode compressed state").Build()
		}
		compressed, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, env, ferrors.WrapError(err, ferrors.CategoryPersistence, "decode compressed state").Build()
		}
		zr, err := gzip.NewReader(bytes.NewReader(compressed))
		if err != nil {
			return nil, env, ferrors.WrapError(err, ferrors.CategoryPersistence, "decompress persisted state").Build()
		}
		data, err = io.ReadAll(zr)
		if err != nil {
			return nil, env, ferrors.WrapError(err, ferrors.CategoryPersistence, "decompress persisted state").Build()
		}
	}

	var partial map[string]any
	if err := json.Unmarshal(data, &partial); err != nil {
		return nil, env, ferrors.WrapError(err, ferrors.CategoryPersistence, "unmarshal persisted state").Build()
	}

	tree := make(state.Tree, len(partial))
	for k, v := range partial {
		tree[k] = v
	}
	return tree, env, nil
}
