// Package merge combines independently sorted streams into one sorted stream.
package merge

import (
	"iter"
	"slices"
)

// Seq merges the ascending streams into one ascending stream. Each stream is
// pulled lazily: one head is held per stream and every round emits the
// smallest head under less. On ties the stream listed first wins.
func Seq[T any](streams []iter.Seq[T], less func(a, b T) bool) iter.Seq[T] {
	return func(yield func(T) bool) {
		type head struct {
			next  func() (T, bool)
			stop  func()
			value T
			full  bool
			done  bool
		}
		heads := make([]head, len(streams))
		for i, s := range streams {
			next, stop := iter.Pull(s)
			heads[i] = head{next: next, stop: stop}
		}
		defer func() {
			for _, h := range heads {
				h.stop()
			}
		}()

		for {
			best := -1
			for i := range heads {
				h := &heads[i]
				if h.done {
					continue
				}
				if !h.full {
					h.value, h.full = h.next()
					if !h.full {
						h.done = true
						continue
					}
				}
				if best < 0 || less(h.value, heads[best].value) {
					best = i
				}
			}
			if best < 0 {
				return
			}
			heads[best].full = false
			if !yield(heads[best].value) {
				return
			}
		}
	}
}

// Slices merges ascending slices into a new ascending slice.
func Slices[T any](lists [][]T, less func(a, b T) bool) []T {
	total := 0
	streams := make([]iter.Seq[T], len(lists))
	for i, l := range lists {
		total += len(l)
		streams[i] = slices.Values(l)
	}
	out := make([]T, 0, total)
	for v := range Seq(streams, less) {
		out = append(out, v)
	}
	return out
}
