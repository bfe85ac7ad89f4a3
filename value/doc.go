// Package value provides the typed document model used by docstore.
//
// A Document is an ordered list of fields; each field holds a Value from a
// closed set of kinds:
//
//   - MinKey / MaxKey: sentinels
//   - Null: value.Null() (missing fields index as null)
//   - Numbers: value.Int(1), value.Float(1.5)
//   - String: value.String("x")
//   - Document / Array: value.Doc(...), value.Array(...)
//   - BinData: value.BinData(subtype, bytes), value.ParseBinData(subtype, base64)
//   - ObjectID, Bool, Date
//
// Example:
//
//	doc := value.D(
//	    "_id", value.MustBinData(value.SubtypeGeneric, "AAAAAAAAAAAAAAAAAAAAAAAAAAAA"),
//	    "mm", value.D("tag", "a"),
//	    "tm", time.Now(),
//	)
//
// Documents round-trip through the mongo-driver bson package with
// MarshalDocument and UnmarshalDocument. Ordering between values is defined by
// the keycodec package, not here.
package value
