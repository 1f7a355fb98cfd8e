package service

import (
	"path/filepath"
	"strings"

	"github.com/and161185/cloudbox/internal/errs"
)

// maxNameLen matches the common filesystem component limit.
const maxNameLen = 255

// ValidateName rejects entry names that could resolve outside a namespace root.
// Namespaces are flat, so any separator is refused as well as "." and "..".
func ValidateName(name string) error {
	switch {
	case name == "", name == ".", name == "..":
		return errs.ErrUnsafeName
	case len(name) > maxNameLen:
		return errs.ErrUnsafeName
	case strings.ContainsAny(name, "/\\\x00"):
		return errs.ErrUnsafeName
	case filepath.IsAbs(name) || filepath.VolumeName(name) != "":
		return errs.ErrUnsafeName
	}
	return nil
}
