// Package shard implements the shard router: for a URL, decide whether it
// belongs to this node's local frontier or must be forwarded to a peer,
// using consistent (rendezvous) hashing over the static peer list.
package shard

import (
	"github.com/cespare/xxhash/v2"
	"github.com/dgryski/go-rendezvous"

	"github.com/connoryin/crawler/internal/urlmodel"
)

// Router owns the rendezvous hash ring over the static peer list and
// answers ownership queries for URLs.
type Router struct {
	peers      []string // peers[i] is host for server ID i
	serverID   int
	rendezvous *rendezvous.Rendezvous
}

// New builds a Router over peers (indexed by server ID, this node's own
// entry included) and this node's serverID.
func New(peers []string, serverID int) *Router {
	nodes := make([]string, len(peers))
	copy(nodes, peers)
	r := rendezvous.New(nodes, xxhash.Sum64String)
	return &Router{peers: nodes, serverID: serverID, rendezvous: r}
}

// Owner returns the server ID that owns u, deciding ownership by
// rendezvous hashing rather than plain "hash(u) mod N" so the ring
// reshuffles minimally when peers are added or removed.
func (r *Router) Owner(u urlmodel.URL) int {
	host := r.rendezvous.Lookup(u.String())
	for i, peer := range r.peers {
		if peer == host {
			return i
		}
	}
	return r.serverID // reached when the peer list is empty: every URL is then local
}

// IsLocal reports whether u shards to this node.
func (r *Router) IsLocal(u urlmodel.URL) bool {
	return r.Owner(u) == r.serverID
}

// ServerID returns this node's own ID.
func (r *Router) ServerID() int { return r.serverID }

// NumPeers returns the number of nodes in the cluster (including this one).
func (r *Router) NumPeers() int { return len(r.peers) }

// PeerHost returns the hostname of peer i.
func (r *Router) PeerHost(i int) string { return r.peers[i] }
