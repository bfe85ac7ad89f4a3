// Package hash provides the checksum used by the WAL and snapshot formats.
//
// All checksums in docstore use CRC32-Castagnoli (CRC32C), which Go computes
// with hardware instructions where available (SSE4.2, ARM CRC).
//
//	checksum := hash.CRC32C(frame)
package hash
