package drizzle

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"drizzle/peer"
)

func postAddrAction(t *testing.T, srv *httptest.Server, path, addr string) *http.Response {
	t.Helper()
	body, err := json.Marshal(syncRequest{Addr: addr})
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	resp, err := http.Post(srv.URL+path, "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	return resp
}

// TestAdminBlockAndForget drives the operator HTTP surface end to end:
// /block moves a synced peer to BLOCKED without removing it from the table,
// and /forget removes it outright so it starts fresh from NOT_CONNECTED if
// it reappears.
func TestAdminBlockAndForget(t *testing.T) {
	a := newTestNode(t)
	b := newTestNode(t)
	go a.Run()
	go b.Run()

	srv := httptest.NewServer(NewAdminHandler(a))
	defer srv.Close()

	a.SyncTo(b.LocalAddr())

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		p, ok := a.GetPeer(b.LocalAddr())
		if ok && p.State() == peer.Direct {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if p, ok := a.GetPeer(b.LocalAddr()); !ok || p.State() != peer.Direct {
		t.Fatalf("setup: peers did not reach DIRECT before exercising /block")
	}

	resp := postAddrAction(t, srv, "/block", b.LocalAddr().String())
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("/block status = %d, want %d", resp.StatusCode, http.StatusAccepted)
	}
	resp.Body.Close()

	deadline = time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if p, ok := a.GetPeer(b.LocalAddr()); ok && p.State() == peer.Blocked {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if p, ok := a.GetPeer(b.LocalAddr()); !ok || p.State() != peer.Blocked {
		t.Fatalf("peer state after /block = %v, want BLOCKED", p.State())
	}

	resp = postAddrAction(t, srv, "/forget", b.LocalAddr().String())
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("/forget status = %d, want %d", resp.StatusCode, http.StatusAccepted)
	}
	resp.Body.Close()

	deadline = time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, ok := a.GetPeer(b.LocalAddr()); !ok {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("peer still present in the table after /forget")
}

// TestAdminServeAddrActionRejectsBadSpec exercises the error path: a
// malformed address never reaches the Node action and the handler answers
// 400 rather than panicking or hanging.
func TestAdminServeAddrActionRejectsBadSpec(t *testing.T) {
	a := newTestNode(t)
	go a.Run()

	srv := httptest.NewServer(NewAdminHandler(a))
	defer srv.Close()

	resp := postAddrAction(t, srv, "/block", "not-an-address")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
}
