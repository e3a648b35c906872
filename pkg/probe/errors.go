package probe

import (
	"errors"
	"fmt"

	"github.com/715d/targetprobe/pkg/platform"
)

// ErrInconsistent matches every Violation with errors.Is.
var ErrInconsistent = errors.New("target and visible headers disagree")

// Violation reports a platform whose characteristic header availability
// disagrees with the resolved target.
type Violation struct {
	// Platform is the platform whose header was probed.
	Platform platform.Identity
	// Header is the characteristic header of Platform.
	Header string
	// Expected is true when the target is Platform and the header is missing,
	// false when the target is another platform and the header is present.
	Expected bool
}

func (v *Violation) Error() string {
	if v.Expected {
		return fmt.Sprintf("%s targets are expected to have <%s>", v.Platform, v.Header)
	}
	return fmt.Sprintf("non-%s targets mistakenly have <%s>, probably from host includes", v.Platform, v.Header)
}

func (v *Violation) Is(target error) bool { return target == ErrInconsistent }
