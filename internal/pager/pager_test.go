package pager

import (
	"testing"
	"time"
)

const firstPageLimit = 30

func newStartedPager(t *testing.T) (*Pager, <-chan Emission) {
	t.Helper()
	pager, err := New(Config{FirstPageLimit: firstPageLimit})
	if err != nil {
		t.Fatalf("failed to build pager: %v", err)
	}
	emissions, cancel := pager.Subscribe()
	t.Cleanup(cancel)
	pager.Start()
	t.Cleanup(pager.Stop)
	return pager, emissions
}

func waitEmission(t *testing.T, emissions <-chan Emission) Emission {
	t.Helper()
	select {
	case emission := <-emissions:
		return emission
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for emission")
		return Emission{}
	}
}

func expectNoEmission(t *testing.T, emissions <-chan Emission) {
	t.Helper()
	select {
	case emission := <-emissions:
		t.Fatalf("unexpected emission %+v", emission)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestLoadNextIsNoOpBeforeFirstLoad(t *testing.T) {
	pager, emissions := newStartedPager(t)

	pager.SetConnected(true)
	emission := waitEmission(t, emissions)
	if !emission.Connected || emission.Request != nil {
		t.Fatalf("unexpected first emission %+v", emission)
	}

	pager.LoadNext()
	expectNoEmission(t, emissions)
}

func TestReloadIssuesFirstPageAndResultAdvancesCursor(t *testing.T) {
	pager, emissions := newStartedPager(t)
	pager.SetConnected(true)
	waitEmission(t, emissions)

	pager.Reload()
	emission := waitEmission(t, emissions)
	if emission.Request == nil {
		t.Fatalf("expected a request emission")
	}
	if !emission.Request.Cursor.Equal(NewCursor(Limit(firstPageLimit))) {
		t.Fatalf("expected first-page cursor, got %v", emission.Request.Cursor.Parameters())
	}
	if pager.State() != StateLoading {
		t.Fatalf("expected loading state, got %q", pager.State())
	}

	pager.HandleResult(emission.Request.ID, 12, nil)
	if pager.ItemsCached() != 12 {
		t.Fatalf("expected 12 cached items, got %d", pager.ItemsCached())
	}
	if pager.State() != StateLoaded {
		t.Fatalf("expected loaded state, got %q", pager.State())
	}

	pager.LoadNext()
	next := waitEmission(t, emissions)
	if next.Request == nil {
		t.Fatalf("expected a next-page request")
	}
	offset, ok := next.Request.Cursor.Offset()
	if !ok || offset != 12 {
		t.Fatalf("expected offset 12, got %d (present=%v)", offset, ok)
	}
}

func TestCorrectionRedirectsNonFirstRequestOnEmptyCache(t *testing.T) {
	pager, emissions := newStartedPager(t)
	pager.SetConnected(true)
	waitEmission(t, emissions)

	stalePage := NewCursor(Limit(firstPageLimit), Offset(60))
	pager.enqueue(func() {
		pager.issueRequest(stalePage)
	})

	corrected := waitEmission(t, emissions)
	if corrected.Request == nil {
		t.Fatalf("expected the corrected request")
	}
	if corrected.Request.Cursor.Equal(stalePage) {
		t.Fatalf("original non-first request must not be forwarded")
	}
	if !corrected.Request.Cursor.Equal(NewCursor(Limit(firstPageLimit))) {
		t.Fatalf("expected first-page redirect, got %v", corrected.Request.Cursor.Parameters())
	}
	// Exactly one redirect: no further requests follow.
	expectNoEmission(t, emissions)
}

func TestDisconnectResetsItemsAndCursor(t *testing.T) {
	pager, emissions := newStartedPager(t)
	pager.SetConnected(true)
	waitEmission(t, emissions)

	pager.Reload()
	first := waitEmission(t, emissions)
	pager.HandleResult(first.Request.ID, 8, nil)
	if pager.ItemsCached() != 8 {
		t.Fatalf("expected cached items before disconnect")
	}

	pager.SetConnected(false)
	disconnected := waitEmission(t, emissions)
	if disconnected.Connected {
		t.Fatalf("expected disconnected emission")
	}
	if pager.ItemsCached() != 0 {
		t.Fatalf("disconnect must clear cached items, got %d", pager.ItemsCached())
	}
	if !pager.CurrentCursor().Equal(NewCursor(Limit(firstPageLimit))) {
		t.Fatalf("disconnect must reset the cursor, got %v", pager.CurrentCursor().Parameters())
	}
	if pager.State() != StateAwaitingConnection {
		t.Fatalf("expected awaiting-connection state, got %q", pager.State())
	}

	pager.SetConnected(true)
	waitEmission(t, emissions)

	// After the reset, LoadNext behaves as if Reload had been called.
	pager.LoadNext()
	next := waitEmission(t, emissions)
	if next.Request == nil || !next.Request.Cursor.Equal(NewCursor(Limit(firstPageLimit))) {
		t.Fatalf("expected first-page fetch after reconnect, got %+v", next.Request)
	}
}

func TestResultInFlightAtDisconnectCannotDefeatReset(t *testing.T) {
	pager, emissions := newStartedPager(t)
	pager.SetConnected(true)
	waitEmission(t, emissions)

	pager.Reload()
	first := waitEmission(t, emissions)
	pager.HandleResult(first.Request.ID, 8, nil)

	pager.LoadNext()
	inFlight := waitEmission(t, emissions)
	if offset, ok := inFlight.Request.Cursor.Offset(); !ok || offset != 8 {
		t.Fatalf("expected an offset-8 request in flight, got %v", inFlight.Request.Cursor.Parameters())
	}

	pager.SetConnected(false)
	waitEmission(t, emissions)

	// The offset request died with its connection; its payload arrives late
	// and must not re-advance past the reset.
	pager.HandleResult(inFlight.Request.ID, 8, nil)
	if pager.ItemsCached() != 0 {
		t.Fatalf("late result re-advanced the item count to %d", pager.ItemsCached())
	}
	if !pager.CurrentCursor().Equal(NewCursor(Limit(firstPageLimit))) {
		t.Fatalf("late result moved the cursor to %v", pager.CurrentCursor().Parameters())
	}

	pager.SetConnected(true)
	waitEmission(t, emissions)

	pager.LoadNext()
	next := waitEmission(t, emissions)
	if next.Request == nil || !next.Request.Cursor.Equal(NewCursor(Limit(firstPageLimit))) {
		t.Fatalf("expected first-page fetch after reconnect, got %+v", next.Request)
	}
}

func TestStaleResultsAreIgnored(t *testing.T) {
	pager, emissions := newStartedPager(t)
	pager.SetConnected(true)
	waitEmission(t, emissions)

	pager.Reload()
	first := waitEmission(t, emissions)
	pager.Reload()
	second := waitEmission(t, emissions)
	if first.Request.ID == second.Request.ID {
		t.Fatalf("expected distinct request identities")
	}

	// The payload for the superseded request arrives late and must not
	// advance the cursor.
	pager.HandleResult(first.Request.ID, 10, nil)
	if pager.ItemsCached() != 0 {
		t.Fatalf("stale result advanced the item count to %d", pager.ItemsCached())
	}

	pager.HandleResult(second.Request.ID, 5, nil)
	if pager.ItemsCached() != 5 {
		t.Fatalf("expected current result to apply, got %d", pager.ItemsCached())
	}
}

func TestConnectivityEmissionsAreDeduplicated(t *testing.T) {
	pager, emissions := newStartedPager(t)

	pager.SetConnected(true)
	waitEmission(t, emissions)
	pager.SetConnected(true)
	expectNoEmission(t, emissions)
}

func TestSharedStreamReachesAllSubscribers(t *testing.T) {
	pager, err := New(Config{FirstPageLimit: firstPageLimit})
	if err != nil {
		t.Fatalf("failed to build pager: %v", err)
	}
	firstStream, cancelFirst := pager.Subscribe()
	defer cancelFirst()
	secondStream, cancelSecond := pager.Subscribe()
	defer cancelSecond()
	pager.Start()
	defer pager.Stop()

	pager.SetConnected(true)
	first := waitEmission(t, firstStream)
	second := waitEmission(t, secondStream)
	if first.Connected != second.Connected {
		t.Fatalf("subscribers observed different sequences")
	}
}
