//go:build linux

package portscan

import (
	"context"
	"strconv"
	"strings"
	"syscall"

	"github.com/prometheus/procfs"

	"github.com/sentinel-dev/sentinel-core/internal/sentinelerr"
)

// tcpStateNames maps the /proc/net/tcp "st" hex column to a State.
var tcpStateNames = map[uint64]State{
	0x01: StateEstab,
	0x02: StateUnknown, // SYN_SENT
	0x03: StateUnknown, // SYN_RECV
	0x04: StateUnknown, // FIN_WAIT1
	0x05: StateUnknown, // FIN_WAIT2
	0x06: StateTimeWait,
	0x07: StateUnknown, // CLOSE
	0x08: StateCloseWait,
	0x09: StateUnknown, // LAST_ACK
	0x0A: StateListen,
	0x0B: StateUnknown, // CLOSING
}

// udpState reports a UDP socket's /proc/net/udp "st" column as listen
// (0x07, TCP_CLOSE — the kernel's code for an unconnected, bound
// socket) or established (0x01 — connected via connect(2)); anything
// else is unknown.
func udpState(st uint64) State {
	switch st {
	case 0x07:
		return StateListen
	case 0x01:
		return StateEstab
	default:
		return StateUnknown
	}
}

// buildInodeOwners maps each socket inode to the pid and name of the
// process that holds it open; it is built once per scan.
func buildInodeOwners(ctx context.Context, fs procfs.FS) map[uint64]PortEntry {
	owners := make(map[uint64]PortEntry)
	procs, err := fs.AllProcs()
	if err != nil {
		return owners
	}
	for _, p := range procs {
		if ctx.Err() != nil {
			return owners
		}
		targets, err := p.FileDescriptorTargets()
		if err != nil {
			continue
		}
		var name string
		for _, target := range targets {
			if !strings.HasPrefix(target, "socket:[") {
				continue
			}
			inodeStr := strings.TrimSuffix(strings.TrimPrefix(target, "socket:["), "]")
			inode, err := strconv.ParseUint(inodeStr, 10, 64)
			if err != nil {
				continue
			}
			if name == "" {
				name, _ = p.Comm()
			}
			owners[inode] = PortEntry{PID: p.PID, ProcessName: name}
		}
	}
	return owners
}

func scanPlatform(ctx context.Context) ([]PortEntry, error) {
	fs, err := procfs.NewDefaultFS()
	if err != nil {
		return nil, sentinelerr.Wrap(sentinelerr.KindIOError, "open procfs", err)
	}

	owners := buildInodeOwners(ctx, fs)

	var entries []PortEntry
	appendTCP := func(proto Protocol) func([]*procfs.NetTCPLine) {
		return func(lines []*procfs.NetTCPLine) {
			for _, l := range lines {
				if ctx.Err() != nil {
					return
				}
				e := PortEntry{
					Port:         uint16(l.LocalPort),
					Protocol:     proto,
					State:        tcpStateNames[l.St],
					LocalAddress: addrString(l.LocalAddr),
				}
				if l.RemPort != 0 {
					e.RemoteAddress = l.RemAddr.String() + ":" + strconv.FormatUint(l.RemPort, 10)
				}
				if owner, ok := owners[l.Inode]; ok {
					e.PID = owner.PID
					e.ProcessName = owner.ProcessName
				}
				entries = append(entries, e)
			}
		}
	}
	appendUDP := func(lines []*procfs.NetUDPLine) {
		for _, l := range lines {
			if ctx.Err() != nil {
				return
			}
			e := PortEntry{
				Port:         uint16(l.LocalPort),
				Protocol:     ProtocolUDP,
				State:        udpState(l.St),
				LocalAddress: addrString(l.LocalAddr),
			}
			if owner, ok := owners[l.Inode]; ok {
				e.PID = owner.PID
				e.ProcessName = owner.ProcessName
			}
			entries = append(entries, e)
		}
	}

	if tcp, err := fs.NetTCP(); err == nil {
		appendTCP(ProtocolTCP)(tcp)
	}
	if ctx.Err() == nil {
		if tcp6, err := fs.NetTCP6(); err == nil {
			appendTCP(ProtocolTCP)(tcp6)
		}
	}
	if ctx.Err() == nil {
		if udp, err := fs.NetUDP(); err == nil {
			appendUDP(udp)
		}
	}
	if ctx.Err() == nil {
		if udp6, err := fs.NetUDP6(); err == nil {
			appendUDP(udp6)
		}
	}
	return entries, nil
}

func addrString(ip interface{ String() string }) string {
	if ip == nil {
		return "*"
	}
	s := ip.String()
	if s == "" || s == "<nil>" {
		return "*"
	}
	return s
}

func killPID(pid int) error {
	if err := syscall.Kill(pid, syscall.SIGTERM); err != nil {
		if err == syscall.EPERM {
			return sentinelerr.Wrap(sentinelerr.KindPermissionDenied, "kill process", err)
		}
		if err == syscall.ESRCH {
			return sentinelerr.Wrap(sentinelerr.KindNotFound, "process already gone", err)
		}
		return sentinelerr.Wrap(sentinelerr.KindIOError, "kill process", err)
	}
	return nil
}
