package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/mianhamzaathar/AIFORGE/pkg/enums"
)

var ErrUnknownVersion = errors.New("no decoder for event version")

type versionKey struct {
	eventType enums.OutboxEventType
	version   int
}

// DecoderRegistry decodes payloads by event type and envelope version.
// Consumers use it so old messages still in a subscription keep decoding
// after a payload change.
type DecoderRegistry struct {
	mu       sync.RWMutex
	decoders map[versionKey]decodeFunc
}

// NewDecoderRegistry registers every payload version in the catalog.
func NewDecoderRegistry() *DecoderRegistry {
	return newDecoderRegistry(catalog(""))
}

func newDecoderRegistry(descs []Descriptor) *DecoderRegistry {
	r := &DecoderRegistry{decoders: make(map[versionKey]decodeFunc, len(descs))}
	for _, d := range descs {
		r.Register(d.EventType, d.Version, d.decode)
	}
	return r
}

// Register adds or replaces the decoder for one event version.
func (r *DecoderRegistry) Register(eventType enums.OutboxEventType, version int, decode func(json.RawMessage) (any, error)) {
	r.mu.Lock()
	r.decoders[versionKey{eventType, version}] = decode
	r.mu.Unlock()
}

func (r *DecoderRegistry) Decode(eventType enums.OutboxEventType, version int, raw json.RawMessage) (any, error) {
	if version == 0 {
		version = 1
	}
	r.mu.RLock()
	decode, ok := r.decoders[versionKey{eventType, version}]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s v%d", ErrUnknownVersion, eventType, version)
	}
	v, err := decode(raw)
	if err != nil {
		return nil, fmt.Errorf("decode %s v%d: %w", eventType, version, err)
	}
	return v, nil
}
