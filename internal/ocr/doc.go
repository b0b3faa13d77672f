// Package ocr turns a region crop into text.
//
// The Engine interface is the recognition boundary; Tesseract implements it
// with gosseract. Consensus wraps an Engine and runs three attempts per
// region, each on a differently prepared copy of the crop, then picks one
// with Arbitrate according to the field type.
//
// # Prerequisites
//
// Tesseract and the Portuguese language data must be installed:
//   - Ubuntu/Debian: apt-get install tesseract-ocr tesseract-ocr-por
//   - macOS: brew install tesseract tesseract-lang
//
// A custom traineddata directory can be selected with WithTessdataPrefix.
//
// # Field Configurations
//
//	text      --psm 6 --oem 3
//	cpf       --psm 7 --oem 3 -c tessedit_char_whitelist=0123456789.-/
//	number    --psm 7 --oem 3 -c tessedit_char_whitelist=0123456789.
//	currency  --psm 7 --oem 3 -c tessedit_char_whitelist=0123456789,.
//	date      --psm 7 --oem 3 -c tessedit_char_whitelist=0123456789/
//
// # Preprocessing
//
// Every crop is converted to grayscale, upscaled (8x by default) with cubic
// interpolation and median filtered. Numeric fields also get a linear
// contrast gain. The attempts then run on the prepared crop as is, on its
// inverse and on a contrast-boosted copy.
package ocr
