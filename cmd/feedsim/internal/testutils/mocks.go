package testutils

import "time"

// MockClock returns a fixed time, advanced manually by tests.
type MockClock struct {
	Current time.Time
}

func (c *MockClock) Now() time.Time { return c.Current }

func (c *MockClock) Advance(d time.Duration) { c.Current = c.Current.Add(d) }

// MockRand replays scripted values, cycling when exhausted.
type MockRand struct {
	Ints   []int
	Floats []float64
	iIdx   int
	fIdx   int
}

func (r *MockRand) Intn(n int) int {
	if len(r.Ints) == 0 {
		return 0
	}
	v := r.Ints[r.iIdx%len(r.Ints)]
	r.iIdx++
	if v >= n {
		v = v % n
	}
	return v
}

func (r *MockRand) Float64() float64 {
	if len(r.Floats) == 0 {
		return 0
	}
	v := r.Floats[r.fIdx%len(r.Floats)]
	r.fIdx++
	return v
}
