// Package logging provides the crawler's log sink as an injected
// capability rather than a package-level singleton: it is passed to the
// components that need it, and the synchronized writer beneath it is a
// thin wrapper providing per-operation mutual exclusion.
package logging

import (
	"io"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

// Category is a user-visible log line prefix.
type Category string

const (
	CategoryGet Category = "Get"
	CategoryIgn Category = "Ign"
	CategoryErr Category = "Err"
)

// Sink is the capability every component that logs receives. It is safe
// for concurrent use, matching the original's StreamWriter::synchronized.
type Sink struct {
	mu     sync.Mutex
	logger *logrus.Logger
}

// New builds a Sink writing to path, or to os.Stderr if path is empty
// (the original defaults to std::clog when no --log_path is given).
func New(path string, runID string) (*Sink, error) {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	var out io.Writer = os.Stderr
	if path != "" {
		f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, err
		}
		out = f
	}
	logger.SetOutput(out)

	sink := &Sink{logger: logger}
	sink.entry().WithField("run_id", runID).Info("logging started")
	return sink, nil
}

func (s *Sink) entry() *logrus.Entry {
	return logrus.NewEntry(s.logger)
}

// Line logs a category-prefixed message tagged with the worker/thread id
// and the URL under discussion, reproducing the "[Thread-N] Get: url [size]"
// shape of the original while keeping the fields structured.
func (s *Sink) Line(threadID int, category Category, message string, requestURL string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entry().WithFields(logrus.Fields{
		"thread":   threadID,
		"category": string(category),
		"url":      requestURL,
	}).Info(message)
}

// Info logs an unstructured informational line (stats, checkpoint progress).
func (s *Sink) Info(fields map[string]interface{}, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entry().WithFields(fields).Info(message)
}

// Error logs a component-level error not tied to a specific URL.
func (s *Sink) Error(err error, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entry().WithError(err).Error(message)
}
