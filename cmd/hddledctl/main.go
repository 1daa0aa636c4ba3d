// Copyright 2023 the u-root Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"path/filepath"
	"strings"

	"github.com/u-root/hddled/pkg/hddled"
)

var (
	socketDir = flag.String("socket_dir", "/run/hddled", "Directory of the hddledd control sockets")
	led       = flag.Int("led", 1, "Which LED to control, 1-5")
	state     = flag.Int("state", -1, "State to set: 0=off 1=green 2=red 3=both, -1 to only read")
)

func main() {
	flag.Parse()

	path := filepath.Join(*socketDir, fmt.Sprintf("hddled%d", *led))
	conn, err := net.Dial("unix", path)
	if err != nil {
		log.Fatalf("connect to %s: %v", path, err)
	}
	defer conn.Close()

	if *state >= 0 {
		if _, err := fmt.Fprintf(conn, "%d\n", *state); err != nil {
			log.Fatalf("write to %s: %v", path, err)
		}
	}
	if err := conn.(*net.UnixConn).CloseWrite(); err != nil {
		log.Fatalf("half-close %s: %v", path, err)
	}

	out, err := io.ReadAll(conn)
	if err != nil {
		log.Fatalf("read from %s: %v", path, err)
	}
	d := strings.TrimSpace(string(out))
	if d == "" {
		log.Fatalf("no state served by %s", path)
	}
	s := hddled.DecodeState(uint32(d[0] - '0'))
	fmt.Printf("hddled%d: %s (%s)\n", *led, d, s)
}
