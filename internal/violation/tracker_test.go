package violation

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeTimer struct {
	at      time.Time
	fn      func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// fakeClock fires scheduled callbacks synchronously from Advance.
type fakeClock struct {
	now    time.Time
	timers []*fakeTimer
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	t := &fakeTimer{at: c.now.Add(d), fn: f}
	c.timers = append(c.timers, t)
	return t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
	for _, t := range c.timers {
		if !t.stopped && !t.fired && !t.at.After(c.now) {
			t.fired = true
			t.fn()
		}
	}
}

func TestRegisterReachesThreshold(t *testing.T) {
	assert := assert.New(t)
	tr := New(WithClock(newFakeClock()))

	count, mute := tr.Register("100001", "42", true, 3)
	assert.Equal(1, count)
	assert.False(mute)

	count, mute = tr.Register("100001", "42", true, 3)
	assert.Equal(2, count)
	assert.False(mute)

	count, mute = tr.Register("100001", "42", true, 3)
	assert.Equal(3, count)
	assert.True(mute)

	tr.Clear("100001", "42")
	assert.Equal(0, tr.Len())

	count, mute = tr.Register("100001", "42", true, 3)
	assert.Equal(1, count)
	assert.False(mute)
}

func TestRegisterNotTriggeredDoesNotMutate(t *testing.T) {
	assert := assert.New(t)
	tr := New(WithClock(newFakeClock()))

	count, mute := tr.Register("100001", "42", false, 1)
	assert.Equal(0, count)
	assert.False(mute)
	assert.Equal(0, tr.Len())

	tr.Register("100001", "42", true, 3)
	count, _ = tr.Register("100001", "42", false, 3)
	assert.Equal(1, count)
}

func TestRegisterKeysByGroupAndUser(t *testing.T) {
	assert := assert.New(t)
	tr := New(WithClock(newFakeClock()))

	tr.Register("100001", "42", true, 3)
	tr.Register("100002", "42", true, 3)
	count, _ := tr.Register("100001", "43", true, 3)

	assert.Equal(1, count)
	assert.Equal(3, tr.Len())
}

func TestDecayAnchoredToFirstOffense(t *testing.T) {
	assert := assert.New(t)
	clock := newFakeClock()
	tr := New(WithClock(clock), WithWindow(24*time.Hour))

	tr.Register("100001", "42", true, 3)
	rec, ok := tr.Get("100001", "42")
	assert.True(ok)
	assert.Equal(clock.Now().Add(24*time.Hour), rec.ExpiresAt)

	clock.Advance(12 * time.Hour)
	count, _ := tr.Register("100001", "42", true, 3)
	assert.Equal(2, count)

	clock.Advance(12*time.Hour - time.Second)
	_, ok = tr.Get("100001", "42")
	assert.True(ok)

	clock.Advance(2 * time.Second)
	_, ok = tr.Get("100001", "42")
	assert.False(ok)

	count, _ = tr.Register("100001", "42", true, 3)
	assert.Equal(1, count)
}

func TestClearCancelsDecay(t *testing.T) {
	assert := assert.New(t)
	clock := newFakeClock()
	tr := New(WithClock(clock), WithWindow(time.Hour))

	tr.Register("100001", "42", true, 3)
	tr.Clear("100001", "42")
	tr.Clear("100001", "42")

	clock.Advance(30 * time.Minute)
	tr.Register("100001", "42", true, 3)

	// the first record's decay must not remove the newer one
	clock.Advance(31 * time.Minute)
	rec, ok := tr.Get("100001", "42")
	assert.True(ok)
	assert.Equal(1, rec.Count)

	clock.Advance(30 * time.Minute)
	assert.Equal(0, tr.Len())
}

func TestStaleDecayCallbackIsNoop(t *testing.T) {
	assert := assert.New(t)
	clock := newFakeClock()
	tr := New(WithClock(clock), WithWindow(time.Hour))

	tr.Register("100001", "42", true, 3)
	stale := clock.timers[0].fn

	tr.Clear("100001", "42")
	tr.Register("100001", "42", true, 3)

	stale()
	_, ok := tr.Get("100001", "42")
	assert.True(ok)
}

func TestStopCancelsPendingDecays(t *testing.T) {
	assert := assert.New(t)
	clock := newFakeClock()
	tr := New(WithClock(clock), WithWindow(time.Hour))

	tr.Register("100001", "42", true, 3)
	tr.Stop()
	clock.Advance(2 * time.Hour)

	assert.True(clock.timers[0].stopped)
	assert.Equal(1, tr.Len())
}

func TestRegisterConcurrent(t *testing.T) {
	tr := New(WithWindow(time.Hour))
	defer tr.Stop()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr.Register("100001", "42", true, 100)
		}()
	}
	wg.Wait()

	rec, ok := tr.Get("100001", "42")
	assert.True(t, ok)
	assert.Equal(t, 50, rec.Count)
}
