package p2p_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ardanlabs/powchain/foundation/blockchain/hash"
	"github.com/ardanlabs/powchain/foundation/blockchain/message"
	"github.com/ardanlabs/powchain/foundation/blockchain/p2p"
)

// Success and failure markers.
const (
	success = "✓"
	failed  = "✗"
)

// =============================================================================

func Test_Exchange(t *testing.T) {
	t.Log("Given the need to exchange messages between two nodes.")
	{
		nodeA := p2p.New(p2p.Config{Host: "node-a"})
		nodeB := p2p.New(p2p.Config{Host: "node-b"})

		mux := http.NewServeMux()
		mux.Handle(p2p.Route, nodeB)
		srv := httptest.NewServer(mux)
		defer srv.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		host := strings.TrimPrefix(srv.URL, "http://")
		pb, err := nodeA.Connect(ctx, host)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to connect: %s", failed, err)
		}
		t.Logf("\t%s\tShould be able to connect.", success)

		if !pb.Send(message.Ping(7)) {
			t.Fatalf("\t%s\tShould be able to queue a ping.", failed)
		}

		env := receive(t, nodeB.Inbound())
		msg, err := message.Decode(env.Data)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to decode the ping: %s", failed, err)
		}
		if nonce, _ := msg.Nonce(); msg.Kind != message.KindPing || nonce != 7 {
			t.Fatalf("\t%s\tShould receive the ping: got %s", failed, msg)
		}
		t.Logf("\t%s\tShould receive the ping.", success)

		if env.Peer.Addr() != "node-a" {
			t.Fatalf("\t%s\tShould know the dialing node by its host: got %s", failed, env.Peer.Addr())
		}
		t.Logf("\t%s\tShould know the dialing node by its host.", success)

		if len(nodeB.KnownPeers().Copy("")) != 1 {
			t.Fatalf("\t%s\tShould add the dialing node to the known peers.", failed)
		}
		t.Logf("\t%s\tShould add the dialing node to the known peers.", success)

		env.Peer.Send(message.Pong(7))

		env = receive(t, nodeA.Inbound())
		msg, err = message.Decode(env.Data)
		if err != nil || msg.Kind != message.KindPong {
			t.Fatalf("\t%s\tShould receive the pong: %v", failed, err)
		}
		t.Logf("\t%s\tShould receive the pong.", success)

		h1 := hash.Of("block-1")
		if n := nodeA.Broadcast(message.NewBlockHashes([]hash.Digest{h1})); n != 1 {
			t.Fatalf("\t%s\tShould broadcast to one peer: got %d", failed, n)
		}
		receive(t, nodeB.Inbound())
		t.Logf("\t%s\tShould broadcast an announcement.", success)

		if n := nodeA.Broadcast(message.NewBlockHashes([]hash.Digest{h1})); n != 0 {
			t.Fatalf("\t%s\tShould not announce the same hash twice: got %d", failed, n)
		}
		t.Logf("\t%s\tShould not announce the same hash twice.", success)

		h2 := hash.Of("block-2")
		nodeB.Broadcast(message.NewBlockHashes([]hash.Digest{h2}))
		receive(t, nodeA.Inbound())

		if !pb.Knows(h2) {
			t.Fatalf("\t%s\tShould remember the hashes a peer announced.", failed)
		}
		if n := nodeA.Broadcast(message.NewBlockHashes([]hash.Digest{h2})); n != 0 {
			t.Fatalf("\t%s\tShould not echo an announcement back: got %d", failed, n)
		}
		t.Logf("\t%s\tShould not echo an announcement back.", success)

		again, err := nodeA.Connect(ctx, host)
		if err != nil || again != pb {
			t.Fatalf("\t%s\tShould reuse the open connection: %v", failed, err)
		}
		t.Logf("\t%s\tShould reuse the open connection.", success)

		nodeA.Shutdown()
		nodeB.Shutdown()

		if _, open := <-nodeA.Inbound(); open {
			t.Fatalf("\t%s\tShould close the inbound channel on shutdown.", failed)
		}
		t.Logf("\t%s\tShould close the inbound channel on shutdown.", success)
	}
}

// =============================================================================

func receive(t *testing.T, ch <-chan p2p.Envelope) p2p.Envelope {
	select {
	case env := <-ch:
		return env
	case <-time.After(5 * time.Second):
		t.Fatalf("\t%s\tShould receive a message in time.", failed)
	}

	return p2p.Envelope{}
}
