package sync

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/starkfull/node/core/p2p"
)

var (
	requestsInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "starkfull",
		Subsystem: "sync",
		Name:      "requests_in_flight",
		Help:      "Number of sync requests currently being served.",
	})
	queueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "starkfull",
		Subsystem: "sync",
		Name:      "queue_depth",
		Help:      "Number of sync requests waiting for a free worker.",
	})
	framesServed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "starkfull",
		Subsystem: "sync",
		Name:      "frames_served_total",
		Help:      "Total response frames written, by protocol.",
	}, []string{"protocol"})
)

func init() {
	prometheus.MustRegister(requestsInFlight, queueDepth, framesServed)
}

// job is one unit of blocking database work queued onto the Server's
// worker pool.
type job struct {
	run func()
}

// Server offloads the blocking storage reads a Dispatcher performs
// onto a bounded pool of goroutines, so the number of concurrent DB
// calls stays fixed regardless of how many peers are streaming
// requests at once.
type Server struct {
	tx  Reader
	log *logrus.Entry

	jobs chan job
}

// NewServer starts workers goroutines pulling from a queue of depth
// queueCap. Call Close to stop them.
func NewServer(tx Reader, workers, queueCap int, log *logrus.Entry) *Server {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	s := &Server{tx: tx, log: log, jobs: make(chan job, queueCap)}
	for i := 0; i < workers; i++ {
		go s.runWorker()
	}
	return s
}

func (s *Server) runWorker() {
	for j := range s.jobs {
		requestsInFlight.Inc()
		j.run()
		requestsInFlight.Dec()
	}
}

// Close stops accepting new work. Workers drain in-flight jobs and
// exit once the queue is empty.
func (s *Server) Close() {
	close(s.jobs)
}

// DispatchFor builds a p2p.Dispatcher that decodes an Iteration
// request, resolves it against handle on one of the Server's worker
// goroutines, and writes every resulting frame to fw. This is the
// concrete entry point wired into Behaviour.ListenAndServe in
// cmd/fullnode, one instance per protocol.
func DispatchFor[T any](s *Server, protocolName string, handle BlockHandler[T]) p2p.Dispatcher {
	return func(ctx context.Context, from peer.ID, protocolID string, request []byte, fw *p2p.FrameWriter) error {
		var it p2p.Iteration
		if err := json.Unmarshal(request, &it); err != nil {
			return fmt.Errorf("sync: decoding iteration request: %w", err)
		}

		done := make(chan error, 1)
		queueDepth.Inc()
		s.jobs <- job{run: func() {
			queueDepth.Dec()
			parts, err := Iterate(s.tx, it, handle)
			if err != nil {
				done <- err
				return
			}
			for _, part := range parts {
				if err := writePart(fw, part); err != nil {
					done <- err
					return
				}
			}
			framesServed.WithLabelValues(protocolName).Add(float64(len(parts)))
			done <- nil
		}}

		select {
		case err := <-done:
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// writePart writes a single Part to fw, dispatching on whether it
// carries a payload or the terminal Fin.
func writePart[T any](fw *p2p.FrameWriter, part p2p.Part[T]) error {
	if fin, ok := part.FinValue(); ok {
		return p2p.WriteFin(fw, part.ID, fin)
	}
	v, _ := part.PayloadValue()
	return p2p.WritePayload(fw, part.ID, v)
}
