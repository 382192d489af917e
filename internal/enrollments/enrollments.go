// Package enrollments tracks which platform users belong to which course.
// The registrant worker and the capacity warning both read from it.
package enrollments

import "strings"

// splitName separates a full name into the first/last pair the vendor
// registrant API requires. A single-word name becomes the first name with a
// placeholder last name, since the vendor rejects empty ones.
func splitName(fullName string) (first, last string) {
	fields := strings.Fields(fullName)
	switch len(fields) {
	case 0:
		return "-", "-"
	case 1:
		return fields[0], "-"
	default:
		return fields[0], strings.Join(fields[1:], " ")
	}
}
