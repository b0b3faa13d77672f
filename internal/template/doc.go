// Package template holds the operator-defined region sets that drive
// extraction, and the Store that persists them.
//
// # Data Model
//
// A Template belongs to a document type and carries an ordered list of
// Regions. Each Region names one field, gives its rectangle in the canonical
// pixel space (see imaging.CanonicalSize) and declares the field.Type the
// recognizer should expect. Region order matters: it is the default column
// order of the consolidated output.
//
// # Persistence
//
// The Store keeps every template in a single JSON document:
//
//	{
//	    "<doc_type>": {
//	        "<template_name>": {
//	            "name": "...",
//	            "regions": { "<field>": {"coords": [x1,y1,x2,y2], "color": [r,g,b], "expected_type": "cpf"} },
//	            "confidence_threshold": 0.6,
//	            "created_at": "...",
//	            "modified_at": "..."
//	        }
//	    }
//	}
//
// Writes are whole-document: every mutation rewrites the file. Before the
// file is replaced, the previous version is copied to a timestamped backup
// next to it, or into the directory given by WithBackupDir. A failed backup
// is logged as a warning and does not stop the save. The document is indented with four spaces and its map keys are
// sorted so that diffs stay readable.
//
// # Concurrency
//
// A Store is safe for concurrent use within one process. Across processes it
// uses an optimistic check: Save fails with ErrConflict when the file on disk
// is no longer the version this Store last read or wrote. Callers recover by
// calling Reload and reapplying their change.
package template
