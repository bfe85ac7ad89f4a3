package codec

import "go.mongodb.org/mongo-driver/bson"

// BSON encodes values with the MongoDB driver's bson package. Values must
// marshal to a document (structs, maps or bson.D).
type BSON struct{}

// Marshal encodes the value to a BSON document.
func (BSON) Marshal(v any) ([]byte, error) { return bson.Marshal(v) }

// Unmarshal decodes a BSON document into v.
func (BSON) Unmarshal(data []byte, v any) error { return bson.Unmarshal(data, v) }

// Name returns the unique name of the codec ("bson").
func (BSON) Name() string { return "bson" }
