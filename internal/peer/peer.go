// Package peer implements the peer-to-peer URL forwarder: one persistent
// send loop per remote peer with reconnect and a bounded queue, plus an
// accept loop that receives forwarded URLs, ported from
// original_source/src/distributed/distributed.cpp's send/reconnect/accept/
// handleRequest.
package peer

import (
	"bufio"
	"context"
	"net"
	"sync"
	"time"

	"github.com/connoryin/crawler/internal/logging"
	"github.com/connoryin/crawler/internal/urlmodel"
)

// QueueCap is the per-peer send queue's soft bound; overflow halves it.
const QueueCap = 1_000_000

// ListenPort is the peer wire protocol's fixed TCP port.
const ListenPort = 8888

// KillMessage instructs a receiving node to shut down.
const KillMessage = "kill"

// Inserter is the capability peer accept handlers use to place a received
// URL into the local frontier, matching the Crawler::insertFrontier
// injection point.
type Inserter interface {
	InsertFrontier(u urlmodel.URL)
}

// Queue is one remote peer's outbound send buffer: a mutex + condition
// variable + the active connection.
type Queue struct {
	host string

	mu    sync.Mutex
	cond  *sync.Cond
	items []urlmodel.URL
	conn  net.Conn

	log *logging.Sink
}

// NewQueue returns a Queue for host, not yet connected.
func NewQueue(host string, log *logging.Sink) *Queue {
	q := &Queue{host: host, log: log}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Enqueue appends url and wakes the send loop, halving the queue if it
// has grown past QueueCap.
func (q *Queue) Enqueue(url urlmodel.URL) {
	q.mu.Lock()
	if len(q.items) > QueueCap {
		q.evictHalfLocked()
	}
	q.items = append(q.items, url)
	q.cond.Signal()
	q.mu.Unlock()
}

func (q *Queue) evictHalfLocked() {
	target := QueueCap / 2
	if len(q.items) > target {
		q.items = append([]urlmodel.URL(nil), q.items[len(q.items)-target:]...)
	}
}

// Len reports the current queue length.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Run drives the send loop for this queue until stop is closed: wait for
// a non-empty queue, pop one URL, write it NUL-terminated to the active
// connection, reconnecting with 1s back-off on failure. Matches
// Distributed::send / Distributed::reconnect.
func (q *Queue) Run(stop <-chan struct{}) {
	go func() { <-stop; q.mu.Lock(); q.cond.Broadcast(); q.mu.Unlock() }()
	for {
		q.mu.Lock()
		for len(q.items) == 0 {
			select {
			case <-stop:
				q.mu.Unlock()
				return
			default:
			}
			q.cond.Wait()
		}
		if len(q.items) > QueueCap {
			q.evictHalfLocked()
		}
		url := q.items[0]
		q.items = q.items[1:]
		conn := q.conn
		q.mu.Unlock()

		if conn == nil {
			conn = q.reconnect(stop)
			if conn == nil {
				return // stop fired during reconnect
			}
		}

		if _, err := conn.Write([]byte(url.String() + "\x00")); err != nil {
			if q.log != nil {
				q.log.Error(err, "sending to peer failed, reconnecting")
			}
			conn = q.reconnect(stop)
			if conn == nil {
				return
			}
		}
	}
}

// reconnect retries a TCP dial to host:8888 every second until it
// succeeds or stop fires, evicting the queue's overflow while it waits.
func (q *Queue) reconnect(stop <-chan struct{}) net.Conn {
	addr := net.JoinHostPort(q.host, portString)
	for {
		select {
		case <-stop:
			return nil
		default:
		}
		conn, err := net.DialTimeout("tcp", addr, 2*time.Second)
		if err == nil {
			q.mu.Lock()
			q.conn = conn
			q.mu.Unlock()
			return conn
		}
		q.mu.Lock()
		if len(q.items) > QueueCap {
			q.evictHalfLocked()
		}
		q.mu.Unlock()
		select {
		case <-time.After(time.Second):
		case <-stop:
			return nil
		}
	}
}

const portString = "8888"

// AcceptLoop binds 0.0.0.0:8888 and spawns a handler per accepted
// connection. If expectedCount > 0, it returns once that many connections
// have been accepted, for callers wanting a bounded handshake phase before
// switching to indefinite accept; pass 0 to run forever. cancel is invoked
// by a handler that receives KillMessage, so a remote kill tears down the
// same context every other subscriber of the run is waiting on, not just
// the running flag.
func AcceptLoop(expectedCount int, ins Inserter, running func() bool, setRunning func(bool), cancel context.CancelFunc, log *logging.Sink) error {
	listener, err := net.Listen("tcp", ":8888")
	if err != nil {
		return err
	}
	if expectedCount == 0 {
		go serveForever(listener, ins, running, setRunning, cancel, log)
		return nil
	}
	defer listener.Close()
	for i := 0; i < expectedCount; i++ {
		conn, err := listener.Accept()
		if err != nil {
			return err
		}
		go handleConnection(conn, ins, running, setRunning, cancel, log)
	}
	return nil
}

func serveForever(listener net.Listener, ins Inserter, running func() bool, setRunning func(bool), cancel context.CancelFunc, log *logging.Sink) {
	for running() {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		go handleConnection(conn, ins, running, setRunning, cancel, log)
	}
	listener.Close()
}

// handleConnection reads one NUL-terminated message at a time,
// tolerating up to 10 consecutive read errors before giving up on the
// peer (Distributed::handleRequest).
func handleConnection(conn net.Conn, ins Inserter, running func() bool, setRunning func(bool), cancel context.CancelFunc, log *logging.Sink) {
	defer conn.Close()
	reader := bufio.NewReader(conn)

	numFailures := 0
	for running() {
		message, err := reader.ReadString('\x00')
		if err != nil {
			numFailures++
			if numFailures > 10 {
				return
			}
			continue
		}
		numFailures = 0
		message = message[:len(message)-1] // drop the NUL

		if message == KillMessage {
			setRunning(false)
			if cancel != nil {
				cancel()
			}
			return
		}
		if message == "" {
			continue
		}

		u, err := urlmodel.Parse(message)
		if err != nil || !u.Absolute() {
			continue
		}
		ins.InsertFrontier(u)
	}
}

// SendKill dials host:8888 and writes the literal kill message, giving
// operators a CLI-driven way to stop a remote node gracefully.
func SendKill(host string) error {
	conn, err := net.DialTimeout("tcp", net.JoinHostPort(host, portString), 5*time.Second)
	if err != nil {
		return err
	}
	defer conn.Close()
	_, err = conn.Write([]byte(KillMessage + "\x00"))
	return err
}
