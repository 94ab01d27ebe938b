package common

// CircularBuffer is a bounded FIFO window of float64 values. Once full, each
// Push overwrites the oldest value.
type CircularBuffer struct {
	buffer   []float64
	size     int
	writePos int
	readPos  int
	count    int
}

// NewCircularBuffer creates a new circular buffer holding at most size values.
// A size below one is treated as one.
func NewCircularBuffer(size int) *CircularBuffer {
	size = max(size, 1)
	return &CircularBuffer{
		buffer: make([]float64, size),
		size:   size,
	}
}

// NewFilledCircularBuffer creates a full buffer with every slot set to value.
func NewFilledCircularBuffer(size int, value float64) *CircularBuffer {
	cb := NewCircularBuffer(size)
	cb.Fill(value)
	return cb
}

// Push appends a value, evicting the oldest one when the buffer is full.
// It reports whether a value was evicted.
func (cb *CircularBuffer) Push(value float64) bool {
	cb.buffer[cb.writePos] = value
	cb.writePos = (cb.writePos + 1) % cb.size

	if cb.count < cb.size {
		cb.count++
		return false
	}

	// Buffer full, the slot just written held the oldest value
	cb.readPos = (cb.readPos + 1) % cb.size
	return true
}

// Values returns a copy of the buffered values, oldest first.
func (cb *CircularBuffer) Values() []float64 {
	values := make([]float64, cb.count)
	pos := cb.readPos
	for i := range values {
		values[i] = cb.buffer[pos]
		pos = (pos + 1) % cb.size
	}
	return values
}

// Mean returns the arithmetic mean of the buffered values, 0 when empty.
func (cb *CircularBuffer) Mean() float64 {
	return Mean(cb.Values())
}

// Fill replaces the contents with size copies of value.
func (cb *CircularBuffer) Fill(value float64) {
	cb.Clear()
	for i := 0; i < cb.size; i++ {
		cb.Push(value)
	}
}

// Len returns the number of buffered values.
func (cb *CircularBuffer) Len() int {
	return cb.count
}

// Cap returns the buffer capacity.
func (cb *CircularBuffer) Cap() int {
	return cb.size
}

// Clear empties the buffer
func (cb *CircularBuffer) Clear() {
	cb.writePos = 0
	cb.readPos = 0
	cb.count = 0
}

