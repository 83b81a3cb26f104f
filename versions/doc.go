// Package versions reads and writes the prebuilt release registry, the
// versions.json document that maps upstream releases to per-platform
// download specifications.
//
// # Document Layout
//
//	{
//	 "current": "0.5.0",
//	 "available": {
//	  "0.5.0": {
//	   "downloads": {
//	    "ruff-x86_64-unknown-linux-gnu.tar.gz": {
//	     "cpu": "x86_64",
//	     "integrity": "sha256-...",
//	     "os": "linux",
//	     "strip_prefix": "ruff-x86_64-unknown-linux-gnu",
//	     "urls": ["https://..."]
//	    }
//	   }
//	  }
//	 }
//	}
//
// # Usage
//
// Edits go through Store.Update, which loads the document, applies an edit
// function and writes the result back atomically while holding a file lock:
//
//	store := versions.NewStore("versions.json")
//	err := store.Update(ctx, func(r *versions.Registry) error {
//	    r.Available.Set("0.5.0", entry)
//	    r.Current = "0.5.0"
//	    return nil
//	})
//
// If the edit function fails, nothing is written.
package versions
