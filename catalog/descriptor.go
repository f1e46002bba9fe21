package catalog

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/amrox/zinc/zerr"
)

// MakeBundleDescriptor renders the printable composite
// "{bundle_id}-{version}", optionally suffixed "~{flavor}".
func MakeBundleDescriptor(bundleID string, version int, flavor string) string {
	d := fmt.Sprintf("%s-%d", bundleID, version)
	if flavor != "" {
		d += "~" + flavor
	}
	return d
}

// BundleIDFromDescriptor extracts the bundle_id portion of a descriptor
// produced by MakeBundleDescriptor.
func BundleIDFromDescriptor(descriptor string) (string, error) {
	withoutFlavor := stripFlavor(descriptor)
	pos := strings.LastIndex(withoutFlavor, "-")
	if pos < 0 {
		return "", zerr.Newf(zerr.UsageError, "malformed bundle descriptor %q", descriptor)
	}
	return withoutFlavor[:pos], nil
}

// VersionFromDescriptor extracts the version portion of a descriptor
// produced by MakeBundleDescriptor.
func VersionFromDescriptor(descriptor string) (int, error) {
	withoutFlavor := stripFlavor(descriptor)
	pos := strings.LastIndex(withoutFlavor, "-")
	if pos < 0 {
		return 0, zerr.Newf(zerr.UsageError, "malformed bundle descriptor %q", descriptor)
	}
	v, err := strconv.Atoi(withoutFlavor[pos+1:])
	if err != nil {
		return 0, zerr.Newf(zerr.UsageError, "malformed version in bundle descriptor %q", descriptor)
	}
	return v, nil
}

func stripFlavor(descriptor string) string {
	if pos := strings.LastIndex(descriptor, "~"); pos >= 0 {
		return descriptor[:pos]
	}
	return descriptor
}
