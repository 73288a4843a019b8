package upload

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/Brownie44l1/aksharnet-api/internal/apperr"
)

// AllowedExtensions is the set of accepted upload extensions, lower case
// and without the dot.
var AllowedExtensions = map[string]struct{}{
	"png":  {},
	"jpg":  {},
	"jpeg": {},
}

var (
	ErrNoFile       = apperr.New(apperr.InvalidInput, "No file uploaded")
	ErrNoFilename   = apperr.New(apperr.InvalidInput, "No file selected")
	ErrNotPermitted = apperr.New(apperr.InvalidInput, "Invalid file or file type not allowed")
)

// Validate checks a client-declared filename before anything is written.
func Validate(filename string) error {
	if filename == "" {
		return ErrNoFilename
	}
	if !Allowed(filename) {
		return ErrNotPermitted
	}
	return nil
}

// Allowed reports whether filename has a permitted extension.
func Allowed(filename string) bool {
	i := strings.LastIndex(filename, ".")
	if i < 0 {
		return false
	}
	_, ok := AllowedExtensions[strings.ToLower(filename[i+1:])]
	return ok
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

// SecureFilename reduces a client filename to a flat ASCII name that is
// safe to join onto the upload directory. It may return "".
func SecureFilename(name string) string {
	name = norm.NFKD.String(name)

	var b strings.Builder
	for _, r := range name {
		if r < utf8.RuneSelf {
			b.WriteRune(r)
		}
	}
	name = b.String()

	name = strings.ReplaceAll(name, "/", " ")
	name = strings.ReplaceAll(name, `\`, " ")
	name = strings.Join(strings.Fields(name), "_")
	name = unsafeChars.ReplaceAllString(name, "")
	return strings.Trim(name, "._")
}
