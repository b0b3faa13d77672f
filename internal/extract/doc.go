// Package extract applies a template to a scanned image.
//
// For each image the Pipeline standardizes the scan onto the canonical
// canvas, crops every template region, runs the OCR consensus on the crop
// and normalizes the winning text for the region's field type. The result
// is a Record whose fields follow the template's region order.
//
// TestExtract and Evaluate serve the template editor: the first reports the
// full trace for a single region, the second scores how many fields of a
// template produce a valid value for an image.
package extract
