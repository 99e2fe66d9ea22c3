package events_test

import (
	"testing"

	"github.com/ardanlabs/powchain/foundation/events"
)

// Success and failure markers.
const (
	success = "✓"
	failed  = "✗"
)

func Test_FanOut(t *testing.T) {
	t.Log("Given the need to fan events out to subscribers.")
	{
		evts := events.New()

		ch1 := evts.Acquire("one")
		ch2 := evts.Acquire("two")
		if evts.Subscribers() != 2 {
			t.Fatalf("\t%s\tShould have two subscribers: got %d", failed, evts.Subscribers())
		}
		t.Logf("\t%s\tShould have two subscribers.", success)

		evts.Send("block mined")

		for _, ch := range []<-chan events.Event{ch1, ch2} {
			e := <-ch
			if e.Message != "block mined" {
				t.Fatalf("\t%s\tShould receive the event on every channel: got %q", failed, e.Message)
			}
		}
		t.Logf("\t%s\tShould receive the event on every channel.", success)

		if _, err := evts.Release("one"); err != nil {
			t.Fatalf("\t%s\tShould be able to release a subscriber: %v", failed, err)
		}
		if _, ok := <-ch1; ok {
			t.Fatalf("\t%s\tShould close a released channel.", failed)
		}
		t.Logf("\t%s\tShould close a released channel.", success)

		if _, err := evts.Release("one"); err == nil {
			t.Fatalf("\t%s\tShould not release an unknown subscriber.", failed)
		}
		t.Logf("\t%s\tShould not release an unknown subscriber.", success)

		evts.Shutdown()
		if _, ok := <-ch2; ok {
			t.Fatalf("\t%s\tShould close every channel on shutdown.", failed)
		}
		t.Logf("\t%s\tShould close every channel on shutdown.", success)
	}
}

func Test_Dropped(t *testing.T) {
	t.Log("Given the need to never block on a slow subscriber.")
	{
		evts := events.New()
		evts.Acquire("slow")

		const sent = 150
		for range sent {
			evts.Send("event")
		}

		dropped, err := evts.Release("slow")
		if err != nil {
			t.Fatalf("\t%s\tShould be able to release the subscriber: %v", failed, err)
		}

		if dropped != sent-100 {
			t.Fatalf("\t%s\tShould count the events beyond the buffer as dropped: got %d", failed, dropped)
		}
		t.Logf("\t%s\tShould count the events beyond the buffer as dropped.", success)
	}
}
