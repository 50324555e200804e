//go:build !linux

package portscan

import "testing"

func TestParseLsofLineListening(t *testing.T) {
	fields := []string{"nginx", "4242", "root", "6u", "IPv4", "0x1", "0t0", "TCP", "127.0.0.1:54321", "(LISTEN)"}
	e, ok := parseLsofLine(fields)
	if !ok {
		t.Fatal("parseLsofLine returned ok=false")
	}
	if e.Port != 54321 || e.Protocol != ProtocolTCP || e.State != StateListen {
		t.Errorf("entry = %+v", e)
	}
	if e.LocalAddress != "127.0.0.1" || e.PID != 4242 || e.ProcessName != "nginx" {
		t.Errorf("entry = %+v", e)
	}
}

func TestParseLsofLineEstablishedWithRemote(t *testing.T) {
	fields := []string{"curl", "99", "u", "4u", "IPv4", "0x2", "0t0", "TCP", "10.0.0.5:51000->93.184.216.34:443", "(ESTABLISHED)"}
	e, ok := parseLsofLine(fields)
	if !ok {
		t.Fatal("parseLsofLine returned ok=false")
	}
	if e.LocalAddress != "10.0.0.5" || e.Port != 51000 {
		t.Errorf("local = %s:%d", e.LocalAddress, e.Port)
	}
	if e.RemoteAddress != "93.184.216.34:443" {
		t.Errorf("remote = %q", e.RemoteAddress)
	}
	if e.State != StateEstab {
		t.Errorf("state = %v", e.State)
	}
}
