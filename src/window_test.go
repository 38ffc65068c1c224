package softmodem

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func Test_WindowZeroCount(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		var capacity = rapid.IntRange(1, 64).Draw(t, "capacity")
		var samples = rapid.SliceOf(rapid.SampledFrom([]LineSample{Space, Mark})).Draw(t, "samples")

		var w = newWindow(capacity)
		w.fill(Mark)

		var history = make([]LineSample, capacity)
		for i := range history {
			history[i] = Mark
		}

		for _, s := range samples {
			w.push(s)
			history = append(history, s)

			var held = history[len(history)-capacity:]

			var zeros = 0
			for _, h := range held {
				if h == Space {
					zeros++
				}
			}

			assert.Equal(t, zeros, w.zeros)
			assert.True(t, w.full())

			for age := range capacity {
				assert.Equal(t, held[capacity-1-age], w.at(age), "age %d", age)
			}
		}
	})
}

func Test_WindowFill(t *testing.T) {
	var w = newWindow(5)
	assert.False(t, w.full())

	w.fill(Space)
	assert.True(t, w.full())
	assert.Equal(t, 5, w.zeros)

	w.push(Mark)
	assert.Equal(t, 4, w.zeros)
	assert.Equal(t, Mark, w.at(0))
	assert.Equal(t, Space, w.at(1))

	w.fill(Mark)
	assert.Zero(t, w.zeros)
	assert.Equal(t, 5, w.capacity())
}

func Test_WindowFillsUp(t *testing.T) {
	var w = newWindow(3)

	w.push(Space)
	w.push(Space)
	assert.False(t, w.full())
	assert.Equal(t, 2, w.zeros)

	w.push(Mark)
	assert.True(t, w.full())
	assert.Equal(t, 2, w.zeros)

	w.push(Mark)
	assert.Equal(t, 1, w.zeros)
}
