package cache

import (
	"encoding/json"
	"time"
)

// Serializer turns typed values into the byte blobs the tiers store
type Serializer interface {
	Serialize(v any) ([]byte, error)
	Deserialize(data []byte, v any) error
	Name() string
}

// JSONSerializer JSON serializer
type JSONSerializer struct{}

// NewJSONSerializer creates a JSON serializer
func NewJSONSerializer() *JSONSerializer {
	return &JSONSerializer{}
}

func (s *JSONSerializer) Serialize(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, ErrSerialize.Wrap(err)
	}
	return data, nil
}

func (s *JSONSerializer) Deserialize(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return ErrDeserialize.Wrap(err)
	}
	return nil
}

func (s *JSONSerializer) Name() string {
	return "json"
}

// envelope is what the coordinator writes to the durable tier. It keeps the
// tags for promotion and the store time for comparison with stale marks.
type envelope struct {
	Value     []byte    `json:"v"`
	Tags      []string  `json:"t,omitempty"`
	StoredAt  time.Time `json:"s"`
	ExpiresAt time.Time `json:"e"`
}

func (e envelope) expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && now.After(e.ExpiresAt)
}

func encodeEnvelope(s Serializer, env envelope) ([]byte, error) {
	return s.Serialize(env)
}

func decodeEnvelope(s Serializer, data []byte) (envelope, error) {
	var env envelope
	err := s.Deserialize(data, &env)
	return env, err
}
