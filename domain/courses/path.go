package courses

import (
	"regexp"
	"strings"

	"github.com/codecampus/campus-core/pkg/apperror"
)

// pathSegment matches one segment of a content path: lowercase alphanumerics
// and underscores, like PostgreSQL's ltree labels.
var pathSegment = regexp.MustCompile(`^[a-z0-9_]{1,64}$`)

// ValidatePath checks a dot-separated content path.
func ValidatePath(path string) error {
	if path == "" {
		return pathError("path is required")
	}
	for _, seg := range strings.Split(path, ".") {
		if !pathSegment.MatchString(seg) {
			return pathError("segments must be 1-64 lowercase alphanumerics or underscores, separated by dots")
		}
	}
	return nil
}

// ParentPath returns the path minus its last segment, or "" for roots.
func ParentPath(path string) string {
	idx := strings.LastIndexByte(path, '.')
	if idx < 0 {
		return ""
	}
	return path[:idx]
}

// IsDescendant reports whether path lies strictly under ancestor.
func IsDescendant(path, ancestor string) bool {
	return strings.HasPrefix(path, ancestor+".")
}

func pathError(msg string) error {
	return apperror.NewValidation(apperror.FieldError{
		Field: "path", Message: msg, Type: "path",
	})
}
