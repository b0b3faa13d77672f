// Package imaging loads scans and maps them onto the canonical canvas that
// template coordinates refer to.
//
// # Coordinate System
//
// All pixel coordinates are 0-based with (0,0) at the top-left corner. For
// regions, (x1,y1) is inclusive and (x2,y2) is exclusive. Coordinates passed
// to CropClamped and ExtractRegion are relative to the image's own top-left
// corner, whatever its Bounds().Min.
//
// # Pipeline
//
//	Load          decode PNG, JPEG, TIFF, BMP (and GIF) with EXIF orientation
//	Standardize   grayscale, cubic resize to CanonicalWidth x CanonicalHeight, 3 channels
//	ExtractRegion clamped crop, or a black Placeholder when nothing is left
//
// Standardize and ExtractRegion absorb their errors so a single bad scan or
// region never stops a batch. CropClamped is the error-returning primitive.
//
// # Thread Safety
//
// ImageCache is safe for concurrent use. The other functions are stateless.
package imaging
