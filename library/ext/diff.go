package ext

import (
	"fmt"
	"strings"

	"github.com/jinzhu/copier"
	"github.com/r3labs/diff/v3"
)

// Diff lists the field changes needed to turn a into b.
func Diff(a, b any) (diff.Changelog, error) {
	return diff.Diff(a, b)
}

// DiffLog is Diff plus a printable one-line-per-change rendering.
func DiffLog(a, b any) (diff.Changelog, string, error) {
	changes, err := diff.Diff(a, b)
	if err != nil {
		return nil, "", err
	}
	var sb strings.Builder
	for _, c := range changes {
		fmt.Fprintf(&sb, "  %s %s: %v -> %v\n", c.Type, strings.Join(c.Path, "."), c.From, c.To)
	}
	return changes, sb.String(), nil
}

// DeepCopy copies src into dst in place so existing pointers observe the update.
func DeepCopy(dst, src any) error {
	return copier.CopyWithOption(dst, src, copier.Option{DeepCopy: true, IgnoreEmpty: false})
}
