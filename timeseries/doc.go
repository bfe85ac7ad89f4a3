// Package timeseries maps time-series views onto bucket collections.
//
// Events inserted into a view are grouped by meta value into bucket
// documents:
//
//	{_id, control: {version, min: {...}, max: {...}, count}, meta, data: {field: {"0": v, ...}}}
//
// Indexes are declared against the view and stored on the bucket collection.
// Schema.Translate rewrites a view key pattern into the bucket pattern and
// Schema.Invert maps it back; Schema.Validate rejects sparse indexes that
// name measurement fields before anything is created.
package timeseries
