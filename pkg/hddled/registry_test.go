// Copyright 2023 the u-root Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package hddled

import (
	"errors"
	"sync"
	"testing"
)

func TestOpenComputesAddresses(t *testing.T) {
	m := newFakeMem()
	r, err := Open(FallbackBase, m)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer r.Close()

	if len(m.maps) != 2*Leds {
		t.Fatalf("mapped %d regions, want %d", len(m.maps), 2*Leds)
	}
	// LED 3 green: 0xD0000000 + 0xC505B8 + 2*0x8
	if m.maps[4] != 0xD0C505C8 {
		t.Errorf("led 3 green mapped at %#08x, want d0c505c8", m.maps[4])
	}
	if m.maps[5] != 0xD0C505F0 {
		t.Errorf("led 3 red mapped at %#08x, want d0c505f0", m.maps[5])
	}
	seen := make(map[uint32]bool)
	for _, a := range m.maps {
		if seen[a] {
			t.Errorf("address %#08x mapped twice, register pairs must not alias", a)
		}
		seen[a] = true
	}
}

func TestOpenForcesOff(t *testing.T) {
	m := newFakeMem()
	// Power-on garbage: every green active (bit clear), every red active
	// (bit set), with unrelated bits in the word.
	for i := 1; i <= Leds; i++ {
		m.preset(greenAddr(FallbackBase, LedID(i)), 0xA5A5A5A4)
		m.preset(redAddr(FallbackBase, LedID(i)), 0x5A5A5A5B)
	}
	r, err := Open(FallbackBase, m)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer r.Close()

	for i := 1; i <= Leds; i++ {
		s, err := r.Get(LedID(i))
		if err != nil {
			t.Fatalf("Get(%d) failed: %v", i, err)
		}
		if s != Off {
			t.Errorf("led %d reports %v after init, want off", i, s)
		}
	}
	// Only bit 0 of each word may have changed.
	if w := m.word(greenAddr(FallbackBase, 1)); w != 0xA5A5A5A5 {
		t.Errorf("green word = %08x, want a5a5a5a5", w)
	}
	if w := m.word(redAddr(FallbackBase, 1)); w != 0x5A5A5A5A {
		t.Errorf("red word = %08x, want 5a5a5a5a", w)
	}
}

func TestSetGetRoundTrip(t *testing.T) {
	m := newFakeMem()
	r, err := Open(FallbackBase, m)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer r.Close()

	for _, s := range []State{Off, Green, Red, Both} {
		if err := r.Set(2, s); err != nil {
			t.Fatalf("Set(2, %v) failed: %v", s, err)
		}
		got, err := r.Get(2)
		if err != nil {
			t.Fatalf("Get(2) failed: %v", err)
		}
		if got != s {
			t.Errorf("Get after Set(%v) = %v", s, got)
		}
	}
}

func TestSetDoesNotDisturbOtherLeds(t *testing.T) {
	m := newFakeMem()
	r, err := Open(FallbackBase, m)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer r.Close()

	if err := r.Set(2, Both); err != nil {
		t.Fatalf("Set(2, both) failed: %v", err)
	}
	for i := 1; i <= Leds; i++ {
		want := Off
		if i == 2 {
			want = Both
		}
		got, err := r.Get(LedID(i))
		if err != nil {
			t.Fatalf("Get(%d) failed: %v", i, err)
		}
		if got != want {
			t.Errorf("led %d reports %v after writing led 2, want %v", i, got, want)
		}
	}
}

func TestOpenPartialFailureRollsBack(t *testing.T) {
	m := newFakeMem()
	m.failAfter = 7
	if _, err := Open(FallbackBase, m); err == nil {
		t.Fatal("Open succeeded with a failing mapper")
	}
	if m.mapped != 0 {
		t.Errorf("%d regions still mapped after failed Open", m.mapped)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	m := newFakeMem()
	r, err := Open(FallbackBase, m)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}
	if m.mapped != 0 {
		t.Errorf("%d regions still mapped after Close", m.mapped)
	}
	if m.doubleUnmaps != 0 {
		t.Errorf("%d registers unmapped twice", m.doubleUnmaps)
	}
}

func TestBadLedID(t *testing.T) {
	m := newFakeMem()
	r, err := Open(FallbackBase, m)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer r.Close()

	for _, id := range []LedID{0, -1, Leds + 1} {
		if _, err := r.Get(id); !errors.Is(err, ErrBadLed) {
			t.Errorf("Get(%d) = %v, want ErrBadLed", id, err)
		}
		if err := r.Set(id, Green); !errors.Is(err, ErrBadLed) {
			t.Errorf("Set(%d) = %v, want ErrBadLed", id, err)
		}
	}
}

func TestConcurrentSetSameLed(t *testing.T) {
	m := newFakeMem()
	r, err := Open(FallbackBase, m)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer r.Close()

	var wg sync.WaitGroup
	for _, s := range []State{Green, Red} {
		wg.Add(1)
		go func(s State) {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				if err := r.Set(1, s); err != nil {
					t.Errorf("Set failed: %v", err)
					return
				}
			}
		}(s)
	}
	wg.Wait()

	got, err := r.Get(1)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got > Both {
		t.Errorf("led 1 reports %d after concurrent writes, not a valid state", got)
	}
}
