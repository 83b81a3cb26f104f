package versions

// sampleDocument is a registry in the canonical on-disk format.
const sampleDocument = `{
 "current": "0.5.0",
 "available": {
  "0.5.0": {
   "downloads": {
    "ruff-x86_64-unknown-linux-gnu.tar.gz": {
     "cpu": "x86_64",
     "integrity": "sha256-47DEQpj8HBSa+/TImW+5JCeuQeRkm5NMpJWZG3hSuFU=",
     "os": "linux",
     "strip_prefix": "ruff-x86_64-unknown-linux-gnu",
     "urls": [
      "https://github.com/astral-sh/ruff/releases/download/0.5.0/ruff-x86_64-unknown-linux-gnu.tar.gz"
     ]
    },
    "ruff-x86_64-pc-windows-msvc.zip": {
     "cpu": "x86_64",
     "integrity": "sha256-AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA=",
     "os": "windows",
     "strip_prefix": null,
     "urls": [
      "https://github.com/astral-sh/ruff/releases/download/0.5.0/ruff-x86_64-pc-windows-msvc.zip"
     ]
    }
   }
  },
  "0.4.10": {
   "downloads": {}
  }
 }
}
`
