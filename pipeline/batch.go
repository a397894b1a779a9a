package pipeline

import "iter"

// Batches yields consecutive slices of at most size items together with the
// offset of their first item. A non-positive size yields a single batch.
func Batches[T any](items []T, size int) iter.Seq2[int, []T] {
	if size <= 0 {
		size = max(len(items), 1)
	}
	return func(yield func(int, []T) bool) {
		for offset := 0; offset < len(items); offset += size {
			end := min(offset+size, len(items))
			if !yield(offset, items[offset:end:end]) {
				return
			}
		}
	}
}
