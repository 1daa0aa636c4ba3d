// Copyright 2023 the u-root Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package ledd brings up the LED registry and serves one control endpoint
// per LED, replacing the /dev/hddled[1-5] char devices of the kernel
// driver with Unix stream sockets speaking the same single-digit contract.
package ledd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/u-root/hddled/pkg/hddled"
	"github.com/u-root/hddled/pkg/logger"
	"github.com/u-root/hddled/pkg/metric"
	"github.com/u-root/hddled/pkg/mmio"
	"github.com/u-root/hddled/pkg/pci"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
)

var log = logger.LogContainer.GetSimpleLogger()

var (
	ledWrites = metric.Counter(metric.MetricOpts{
		Namespace: "hddled",
		Subsystem: "ledd",
		Name:      "writes_total",
		Help:      "Control writes applied to a LED.",
	}, []string{"led"})
	invalidWrites = metric.Counter(metric.MetricOpts{
		Namespace: "hddled",
		Subsystem: "ledd",
		Name:      "invalid_writes_total",
		Help:      "Control writes rejected as malformed.",
	}, []string{"led"})
	ledState = metric.Gauge(metric.MetricOpts{
		Namespace: "hddled",
		Subsystem: "ledd",
		Name:      "state",
		Help:      "Current two-bit LED state.",
	}, []string{"led"})
)

type Options struct {
	// SocketDir is where the per-LED sockets hddled1..hddled5 are bound.
	SocketDir string
	// MetricsAddr is the listen address for /metrics; empty disables it.
	MetricsAddr string
}

// System owns every resource of a running daemon. Teardown releases them
// in reverse order of acquisition.
type System struct {
	registry  *hddled.Registry
	mapper    mmio.Mapper
	listeners []net.Listener
	metrics   net.Listener
	g         errgroup.Group
}

// Startup probes the hardware and brings up the control endpoints. The
// PCI probe runs exactly once; if the port space cannot be opened at all
// the well-known base is assumed, same as a sentinel probe response.
func Startup(o *Options) (*System, error) {
	var base uint32
	cfg, err := pci.OpenConfig()
	if err != nil {
		log.Warnf("Cannot open I/O port space, assuming default GPIO base: %v", err)
		base = hddled.FallbackBase
	} else {
		base = hddled.ResolveBase(cfg)
		cfg.Close()
	}

	mapper, err := mmio.OpenDevMem()
	if err != nil {
		return nil, err
	}
	return New(o, base, mapper)
}

// New builds the registry from an already resolved base address and serves
// it. Takes ownership of the mapper, also on error.
func New(o *Options, base uint32, mapper mmio.Mapper) (*System, error) {
	registry, err := hddled.Open(base, mapper)
	if err != nil {
		mapper.Close()
		return nil, err
	}
	s := &System{registry: registry, mapper: mapper}

	if err := s.listen(o.SocketDir); err != nil {
		s.Teardown()
		return nil, fmt.Errorf("endpoint registration: %w", err)
	}
	if o.MetricsAddr != "" {
		if err := s.startMetrics(o.MetricsAddr); err != nil {
			s.Teardown()
			return nil, err
		}
	}

	for i, l := range s.listeners {
		id := hddled.LedID(i + 1)
		l := l
		s.g.Go(func() error {
			return s.serve(id, l)
		})
	}
	return s, nil
}

// listen binds socket i to LED i. The naming is the stable identity the
// chassis labels rely on, so the loop order is load-bearing.
func (s *System) listen(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	for i := 1; i <= hddled.Leds; i++ {
		path := filepath.Join(dir, fmt.Sprintf("hddled%d", i))
		// A previous run that died without teardown leaves the socket
		// file behind.
		os.Remove(path)
		l, err := net.Listen("unix", path)
		if err != nil {
			return fmt.Errorf("led %d at %s: %w", i, path, err)
		}
		s.listeners = append(s.listeners, l)
		log.Infof("Serving LED %d at %s", i, path)
	}
	return nil
}

func (s *System) startMetrics(addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("metrics listen: %w", err)
	}
	mux := http.NewServeMux()
	metric.StartMetrics(mux)
	s.metrics = l
	go func() {
		if err := http.Serve(l, mux); err != nil && !errors.Is(err, net.ErrClosed) {
			log.Errorf("Metrics server: %v", err)
		}
	}()
	return nil
}

func (s *System) serve(id hddled.LedID, l net.Listener) error {
	for {
		conn, err := l.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		// Track the connection in the group so teardown drains
		// in-flight sessions before unmapping the registers.
		s.g.Go(func() error {
			s.handle(id, conn)
			return nil
		})
	}
}

// handle runs one connection as one session: incoming lines are control
// writes, and once the client half-closes, the current state is served as
// a single digit followed by end-of-stream.
func (s *System) handle(id hddled.LedID, conn net.Conn) {
	defer conn.Close()
	sess := hddled.NewSession(s.registry, id)
	defer sess.Close()

	led := strconv.Itoa(int(id))
	sc := bufio.NewScanner(conn)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if _, err := sess.Write([]byte(line)); err != nil {
			invalidWrites.WithLabelValues(led).Inc()
			log.Warnf("LED %d: rejected control write: %v", id, err)
			continue
		}
		ledWrites.WithLabelValues(led).Inc()
		if st, err := s.registry.Get(id); err == nil {
			ledState.WithLabelValues(led).Set(float64(st))
		}
	}
	if _, err := io.Copy(conn, sess); err != nil {
		// The client may have gone away without reading.
		log.Debugf("LED %d: could not serve state: %v", id, err)
	}
}

// Wait blocks until every endpoint loop has stopped.
func (s *System) Wait() error {
	return s.g.Wait()
}

// Teardown closes the endpoints, then the registry, then the mapped
// memory. Safe to call more than once.
func (s *System) Teardown() error {
	var err error
	if s.metrics != nil {
		err = multierr.Append(err, s.metrics.Close())
		s.metrics = nil
	}
	for _, l := range s.listeners {
		err = multierr.Append(err, l.Close())
	}
	s.listeners = nil
	err = multierr.Append(err, s.g.Wait())
	if s.registry != nil {
		err = multierr.Append(err, s.registry.Close())
		s.registry = nil
	}
	if s.mapper != nil {
		err = multierr.Append(err, s.mapper.Close())
		s.mapper = nil
	}
	return err
}
