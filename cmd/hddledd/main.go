// Copyright 2023 the u-root Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"flag"
	"os"
	"os/signal"

	"github.com/u-root/hddled/pkg/ledd"
	"github.com/u-root/hddled/pkg/logger"
	"golang.org/x/sys/unix"
)

var log = logger.LogContainer.GetSimpleLogger()

var (
	socketDir   = flag.String("socket_dir", "/run/hddled", "Directory for the per-LED control sockets")
	metricsAddr = flag.String("metrics_addr", "", "Listen address for /metrics, empty to disable")
)

func main() {
	flag.Parse()

	s, err := ledd.Startup(&ledd.Options{
		SocketDir:   *socketDir,
		MetricsAddr: *metricsAddr,
	})
	if err != nil {
		log.Fatalf("hddledd startup: %v", err)
	}
	log.Infof("hddledd initialized")

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, unix.SIGTERM)
	<-c

	if err := s.Teardown(); err != nil {
		log.Errorf("hddledd teardown: %v", err)
	}
	log.Infof("hddledd exited")
}
