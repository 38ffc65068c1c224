package softmodem

// window holds the most recent line samples along with a running count of
// the Space samples among them. Push evicts the oldest sample once full, so
// zeros always equals the number of Space entries currently held.
type window struct {
	buf   []LineSample
	head  int // index of the newest sample
	size  int
	zeros int
}

func newWindow(capacity int) *window {
	return &window{
		buf:  make([]LineSample, capacity),
		head: capacity - 1,
	}
}

// fill replaces the whole contents with v.
func (w *window) fill(v LineSample) {
	for i := range w.buf {
		w.buf[i] = v
	}

	w.head = len(w.buf) - 1
	w.size = len(w.buf)

	if v == Space {
		w.zeros = len(w.buf)
	} else {
		w.zeros = 0
	}
}

func (w *window) push(s LineSample) {
	w.head++
	if w.head == len(w.buf) {
		w.head = 0
	}

	if w.size == len(w.buf) {
		if w.buf[w.head] == Space {
			w.zeros--
		}
	} else {
		w.size++
	}

	w.buf[w.head] = s
	if s == Space {
		w.zeros++
	}
}

// at returns the sample pushed age samples ago; at(0) is the newest.
func (w *window) at(age int) LineSample {
	var i = w.head - age
	if i < 0 {
		i += len(w.buf)
	}

	return w.buf[i]
}

func (w *window) full() bool {
	return w.size == len(w.buf)
}

func (w *window) capacity() int {
	return len(w.buf)
}
