package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/iliyamo/room-reservation/internal/model"
)

var testLoc = time.FixedZone("WIB", 7*60*60)

// testClock is a controllable time source shared by engine tests.
type testClock struct {
	mu      sync.Mutex
	current time.Time
}

func newTestClock(start time.Time) *testClock {
	return &testClock{current: start}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	c.current = t
	c.mu.Unlock()
}

func (c *testClock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	c.current = c.current.Add(d)
	updated := c.current
	c.mu.Unlock()
	return updated
}

// at returns the wall-clock instant on 2025-06-02 in the test location.
func at(hour, minute int) time.Time {
	return time.Date(2025, 6, 2, hour, minute, 0, 0, testLoc)
}

func day() time.Time { return time.Date(2025, 6, 2, 0, 0, 0, 0, testLoc) }

func win(startH, startM, endH, endM int) model.Window {
	return model.NewWindow(day(), model.NewTimeOfDay(startH, startM, 0), model.NewTimeOfDay(endH, endM, 0))
}

func testPolicy() Policy {
	p := DefaultPolicy()
	p.Location = testLoc
	return p
}

type fixture struct {
	store  *memStore
	clock  *testClock
	engine *Engine
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{store: newMemStore(), clock: newTestClock(at(7, 0))}
	f.store.addRoom(model.Room{
		ID: 1, Name: "Seminar A", MinCapacity: 1, MaxCapacity: 4,
		IsAvailable: true, AcceptsGeneral: true, AcceptsInstitutional: true,
	})
	base := []Option{WithClock(f.clock.Now)}
	f.engine = NewEngine(f.store, testPolicy(), append(base, opts...)...)
	return f
}

func (f *fixture) book(t *testing.T, w model.Window, leader uint64, members ...uint64) *Booking {
	t.Helper()
	b, err := f.engine.CreateReservation(context.Background(), CreateReservationParams{
		RoomID: 1, Window: &w, LeaderID: leader, MemberIDs: members,
	})
	if err != nil {
		t.Fatalf("CreateReservation: %v", err)
	}
	return b
}

func (f *fixture) status(t *testing.T, id uint64) model.ReservationStatus {
	t.Helper()
	r, err := f.store.GetReservation(context.Background(), id)
	if err != nil {
		t.Fatalf("GetReservation(%d): %v", id, err)
	}
	return r.Status
}

func (f *fixture) violationsOf(personID uint64) []model.Violation {
	var out []model.Violation
	for _, v := range f.store.snapshot().violations {
		if v.PersonID == personID {
			out = append(out, v)
		}
	}
	return out
}

// recordingNotifier captures notices and optionally fails every send.
type recordingNotifier struct {
	mu      sync.Mutex
	notices []Notice
	err     error
}

func (n *recordingNotifier) Notify(_ context.Context, notice Notice) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, notice)
	return n.err
}

func (n *recordingNotifier) sent() []Notice {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Notice(nil), n.notices...)
}

type stubLock struct {
	acquired bool
	err      error
	released int
}

func (l *stubLock) TryLock(context.Context) (func(context.Context) error, bool, error) {
	if l.err != nil || !l.acquired {
		return nil, false, l.err
	}
	return func(context.Context) error {
		l.released++
		return nil
	}, true, nil
}

var errBoom = errors.New("boom")

func (s *memStore) addViolation(v model.Violation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.nextViol++
	v.ID = s.st.nextViol
	if v.Category == "" {
		v.Category = model.CategoryNoShow
	}
	s.st.violations = append(s.st.violations, v)
}

// sequenceCodes returns a generator that yields codes in order and then
// repeats the last one.
func sequenceCodes(codes ...string) func(time.Time) string {
	var mu sync.Mutex
	i := 0
	return func(time.Time) string {
		mu.Lock()
		defer mu.Unlock()
		c := codes[i]
		if i < len(codes)-1 {
			i++
		}
		return c
	}
}
