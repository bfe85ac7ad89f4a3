// Package keycodec defines the total order over values used for primary keys
// and index keys.
//
// Every value has a byte encoding that sorts the same way the values do:
//
//	MinKey < Null (and missing) < Numbers < String < Document < Array <
//	BinData < ObjectID < Bool < Date < MaxKey
//
// Numbers compare by numeric value across int and float, NaN sorts below all
// other numbers and -0 equals +0. BinData sorts by length, then subtype, then
// bytes. Descending key components are the bitwise inversion of the
// ascending encoding.
package keycodec
