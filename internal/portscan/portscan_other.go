//go:build !linux

package portscan

import (
	"bufio"
	"context"
	"os/exec"
	"strconv"
	"strings"

	"github.com/sentinel-dev/sentinel-core/internal/sentinelerr"
)

// scanPlatform shells out to lsof where no procfs equivalent exists.
// lsof -i -P -n prints one line per socket fd, columns:
// COMMAND PID USER FD TYPE DEVICE SIZE/OFF NODE NAME
func scanPlatform(ctx context.Context) ([]PortEntry, error) {
	cmd := exec.CommandContext(ctx, "lsof", "-i", "-P", "-n")
	out, err := cmd.Output()
	if err != nil && len(out) == 0 && ctx.Err() == nil {
		return nil, sentinelerr.Wrap(sentinelerr.KindIOError, "run lsof", err)
	}

	var entries []PortEntry
	scanner := bufio.NewScanner(strings.NewReader(string(out)))
	first := true
	for scanner.Scan() {
		if ctx.Err() != nil {
			break
		}
		line := scanner.Text()
		if first {
			first = false
			continue // header row
		}
		fields := strings.Fields(line)
		if len(fields) < 9 {
			continue
		}
		e, ok := parseLsofLine(fields)
		if ok {
			entries = append(entries, e)
		}
	}
	return entries, nil
}

func parseLsofLine(fields []string) (PortEntry, bool) {
	command := fields[0]
	pid, err := strconv.Atoi(fields[1])
	if err != nil {
		return PortEntry{}, false
	}
	protoField := strings.ToLower(fields[7])
	name := strings.Join(fields[8:], " ")

	proto := ProtocolTCP
	if strings.Contains(protoField, "udp") {
		proto = ProtocolUDP
	}

	state := StateUnknown
	if idx := strings.LastIndex(name, "("); idx >= 0 && strings.HasSuffix(name, ")") {
		switch strings.ToUpper(name[idx+1 : len(name)-1]) {
		case "LISTEN":
			state = StateListen
		case "ESTABLISHED":
			state = StateEstab
		case "TIME_WAIT":
			state = StateTimeWait
		case "CLOSE_WAIT":
			state = StateCloseWait
		}
		name = strings.TrimSpace(name[:idx])
	}

	local := name
	remote := ""
	if idx := strings.Index(name, "->"); idx >= 0 {
		local = name[:idx]
		remote = name[idx+2:]
	}

	host, portStr, ok := splitHostPort(local)
	if !ok {
		return PortEntry{}, false
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return PortEntry{}, false
	}

	return PortEntry{
		Port:          uint16(port),
		Protocol:      proto,
		State:         state,
		LocalAddress:  host,
		RemoteAddress: remote,
		PID:           pid,
		ProcessName:   command,
	}, true
}

// splitHostPort splits "host:port" from lsof's NAME column, where host
// may be "*", an IPv4 literal, or a bracket-free IPv6 literal.
func splitHostPort(s string) (host, port string, ok bool) {
	i := strings.LastIndex(s, ":")
	if i < 0 {
		return "", "", false
	}
	return s[:i], s[i+1:], true
}

func killPID(pid int) error {
	proc, err := exec.LookPath("kill")
	if err != nil {
		return sentinelerr.Wrap(sentinelerr.KindIOError, "locate kill", err)
	}
	out, err := exec.Command(proc, strconv.Itoa(pid)).CombinedOutput()
	if err != nil {
		return sentinelerr.Wrap(sentinelerr.KindPermissionDenied, "kill process: "+string(out), err)
	}
	return nil
}
