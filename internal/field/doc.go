// Package field defines the expected types of template fields and the rules
// that turn a raw OCR transcription into a canonical value.
//
// Two independent operations are provided for every type:
//
//   - Normalize: lenient formatting that never fails. Garbage in produces a
//     best-effort string out.
//   - Validate: a structural check used for confidence scoring. It does not
//     gate extraction; an invalid value is still written to the output.
//
// # Field Types
//
//   - text: free text, whitespace collapsed
//   - cpf: Brazilian CPF (11 digits) or CNPJ (14 digits)
//   - number: digits and dots (process numbers, identifiers)
//   - currency: amounts with a decimal comma ("1.500,00")
//   - date: DD/MM/YY or DD/MM/YYYY
package field
