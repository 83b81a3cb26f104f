package release

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
)

const integrityPrefix = "    integrity = "

// moduleVersionPattern matches the four-part module version literals in
// the README usage example.
var moduleVersionPattern = regexp.MustCompile(`(\d+\.\d+\.\d+.\d+)`)

// Expected number of README lines touched by each substitution.
const (
	wantIntegrityLines = 1
	wantVersionLines   = 2
)

// ReadmeError reports a README whose usage example does not have the
// expected shape.
type ReadmeError struct {
	Path  string
	What  string // "integrity" or "version"
	Want  int
	Found int
}

func (e *ReadmeError) Error() string {
	msg := fmt.Sprintf("expected %d %s line(s), found %d", e.Want, e.What, e.Found)
	if e.Path == "" {
		return "readme: " + msg
	}
	return e.Path + ": " + msg
}

// RewriteReadme returns content with the usage example pointed at
// moduleVersion and integrity. Exactly one line must start with the
// integrity attribute and exactly two lines must carry a four-part version.
func RewriteReadme(content, moduleVersion, integrity string) (string, error) {
	lines := strings.Split(strings.TrimSuffix(content, "\n"), "\n")

	found := 0
	for i, line := range lines {
		if strings.HasPrefix(line, integrityPrefix) {
			found++
			lines[i] = fmt.Sprintf("%s%q,", integrityPrefix, integrity)
		}
	}
	if found != wantIntegrityLines {
		return "", &ReadmeError{What: "integrity", Want: wantIntegrityLines, Found: found}
	}

	found = 0
	for i, line := range lines {
		if moduleVersionPattern.MatchString(line) {
			found++
			lines[i] = moduleVersionPattern.ReplaceAllLiteralString(line, moduleVersion)
		}
	}
	if found != wantVersionLines {
		return "", &ReadmeError{What: "version", Want: wantVersionLines, Found: found}
	}

	return strings.Join(lines, "\n") + "\n", nil
}

// UpdateReadme rewrites the README at path in place; see RewriteReadme.
// The file is not modified if its shape is wrong.
func UpdateReadme(path, moduleVersion, integrity string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	updated, err := RewriteReadme(string(data), moduleVersion, integrity)
	if err != nil {
		var re *ReadmeError
		if errors.As(err, &re) {
			re.Path = path
		}
		return err
	}
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	return os.WriteFile(path, []byte(updated), info.Mode().Perm())
}
