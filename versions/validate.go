package versions

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/albertocavalcante/go-prebuilt/integrity"
	"github.com/albertocavalcante/go-prebuilt/version"
)

// FieldError represents a validation failure for a specific field.
type FieldError struct {
	Field   string // Field path (e.g., `available["0.5.0"].downloads["x.zip"].urls`)
	Message string // Human-readable error message
}

func (e *FieldError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

// ValidationErrors collects multiple validation errors.
type ValidationErrors struct {
	Errors []*FieldError
}

func (e *ValidationErrors) Error() string {
	if len(e.Errors) == 0 {
		return "validation failed"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d validation errors:", len(e.Errors))
	for _, err := range e.Errors {
		fmt.Fprintf(&b, "\n  - %s", err.Error())
	}
	return b.String()
}

// Unwrap returns the underlying errors for errors.Is/As compatibility.
func (e *ValidationErrors) Unwrap() []error {
	errs := make([]error, len(e.Errors))
	for i, err := range e.Errors {
		errs[i] = err
	}
	return errs
}

// Add appends a validation error.
func (e *ValidationErrors) Add(field, message string) {
	e.Errors = append(e.Errors, &FieldError{Field: field, Message: message})
}

// ToError returns nil if no errors, otherwise returns self.
func (e *ValidationErrors) ToError() error {
	if len(e.Errors) == 0 {
		return nil
	}
	return e
}

// Validate checks the registry's structural invariants: every release key
// is a valid release identifier and every download is complete.
//
// Current is not required to name an available release; keeping it
// consistent is the caller's job.
func (r *Registry) Validate() error {
	var errs ValidationErrors
	if r.Current != "" && !version.Valid(r.Current) {
		errs.Add("current", fmt.Sprintf("invalid release identifier %q", r.Current))
	}
	for v, entry := range r.Available.All() {
		field := fmt.Sprintf("available[%q]", v)
		if !version.Valid(v) {
			errs.Add(field, "invalid release identifier")
		}
		entry.validate(field, &errs)
	}
	return errs.ToError()
}

// Validate checks every download in the entry.
func (e *Entry) Validate() error {
	var errs ValidationErrors
	e.validate("", &errs)
	return errs.ToError()
}

func (e *Entry) validate(prefix string, errs *ValidationErrors) {
	for name, spec := range e.Downloads.All() {
		field := fmt.Sprintf("downloads[%q]", name)
		if prefix != "" {
			field = prefix + "." + field
		}
		if name == "" {
			errs.Add(field, "artifact name must not be empty")
		}
		spec.validate(field, errs)
	}
}

func (d *DownloadSpec) validate(field string, errs *ValidationErrors) {
	if d.CPU == "" {
		errs.Add(field+".cpu", "required field is missing")
	}
	if d.OS == "" {
		errs.Add(field+".os", "required field is missing")
	}
	if err := integrity.Validate(d.Integrity); err != nil {
		errs.Add(field+".integrity", err.Error())
	}
	if d.StripPrefix != nil && *d.StripPrefix == "" {
		errs.Add(field+".strip_prefix", "must be null or non-empty")
	}
	if len(d.URLs) == 0 {
		errs.Add(field+".urls", "at least one URL is required")
	}
	for i, u := range d.URLs {
		if !validURL(u) {
			errs.Add(fmt.Sprintf("%s.urls[%d]", field, i), fmt.Sprintf("invalid URL %q", u))
		}
	}
}

// validURL accepts absolute URLs. Only file URLs may omit the host, as in
// file:///mirror/archive.tar.gz.
func validURL(u string) bool {
	parsed, err := url.Parse(u)
	if err != nil || parsed.Scheme == "" {
		return false
	}
	if parsed.Scheme == "file" {
		return parsed.Path != ""
	}
	return parsed.Host != ""
}
