package service

import (
	"errors"
	"strings"
	"testing"

	"github.com/and161185/cloudbox/internal/errs"
)

func TestValidateName(t *testing.T) {
	t.Parallel()

	ok := []string{"a.txt", "photo 1.png", "..hidden", "résumé.pdf", "a..b", strings.Repeat("x", 255)}
	for _, n := range ok {
		if err := ValidateName(n); err != nil {
			t.Errorf("ValidateName(%q)=%v, want nil", n, err)
		}
	}

	bad := []string{
		"", ".", "..",
		"../../etc/passwd", "/etc/passwd", "a/b", `..\win`, `C:\x`,
		"nul\x00byte", strings.Repeat("x", 256),
	}
	for _, n := range bad {
		if err := ValidateName(n); !errors.Is(err, errs.ErrUnsafeName) {
			t.Errorf("ValidateName(%q)=%v, want ErrUnsafeName", n, err)
		}
	}
}
