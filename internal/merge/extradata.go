package merge

import (
	"encoding/json"

	"github.com/lumeno/chatsync/internal/store"
)

// ExtraDataCodec is the application-supplied capability for the opaque
// extra-data blob attached to users, channels and messages. The merge engine
// never inspects the blob's contents; it only attempts Decode and substitutes
// Default on failure.
type ExtraDataCodec interface {
	// Decode validates raw extra data and returns its canonical serialized
	// form. A nil or empty blob decodes to the default value.
	Decode(raw json.RawMessage) (json.RawMessage, error)
	// Default returns the serialized value stored when Decode fails.
	Default() json.RawMessage
}

type objectCodec struct{}

// NewObjectCodec returns the stock codec: extra data must be a JSON object,
// and the default value is the empty object.
func NewObjectCodec() ExtraDataCodec {
	return objectCodec{}
}

func (objectCodec) Decode(raw json.RawMessage) (json.RawMessage, error) {
	if len(raw) == 0 {
		return json.RawMessage(store.DefaultExtraData), nil
	}
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, err
	}
	// JSON null unmarshals into a nil map without error; it is not an
	// object, so it collapses to the default like the empty blob.
	if decoded == nil {
		return json.RawMessage(store.DefaultExtraData), nil
	}
	return raw, nil
}

func (objectCodec) Default() json.RawMessage {
	return json.RawMessage(store.DefaultExtraData)
}
