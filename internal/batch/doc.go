// Package batch runs a template over a directory of scans.
//
// Images are processed one at a time in file name order. A scan that cannot
// be decoded is logged, counted and skipped; nothing short of a setup
// failure stops a run.
//
// # Output
//
// With consolidation every image becomes one row of a semicolon separated
// file in the output directory. The header is written only when the file is
// new or empty, and later runs append to it without removing earlier rows
// for the same image. Without consolidation each image gets its own
// <stem>_results.json holding an object of field values in template order.
//
// # Background Jobs
//
// Start runs ProcessDirectory in a goroutine and returns a Job. Status is a
// cheap snapshot that never waits for recognition. Stop is honoured between
// images, so the image in progress always completes.
package batch
