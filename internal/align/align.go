// Package align provides the page-rounding arithmetic the teacher's boot
// image tooling used when laying out kernel/ramdisk/second-stage regions.
// The verified boot decision core uses it to round a v0-v2 boot image
// header up to the image's page size (internal/bootimg).
package align

// To rounds v up to the next multiple of a. a must be a power of two.
func To(v, a uint64) uint64 {
	return (v + a - 1) / a * a
}

// Padding returns the number of bytes needed after v to reach the next
// multiple of a.
func Padding(v, a uint64) uint64 {
	return To(v, a) - v
}
