package utils

// Filter returns the elements of input for which keep reports true, in
// their original order. The result is never nil.
func Filter[T any](input []T, keep func(T) bool) []T {
	kept := make([]T, 0, len(input))
	for _, item := range input {
		if keep(item) {
			kept = append(kept, item)
		}
	}
	return kept
}
