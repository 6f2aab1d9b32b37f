// Package integrity scans and repairs whole collections of users, products
// and orders.
//
// Repairs work on raw documents (bson.M) rather than typed models, because
// the damage being repaired is usually a field of the wrong shape: a string
// where an array belongs, a NaN total, a date that does not parse. Nothing
// here returns an error. Every defect is corrected in place and recorded as
// one human-readable log line.
package integrity
