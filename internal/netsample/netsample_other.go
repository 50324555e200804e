//go:build !linux

package netsample

import (
	"bufio"
	"os/exec"
	"strconv"
	"strings"

	"github.com/sentinel-dev/sentinel-core/internal/sentinelerr"
)

// readInterfaces shells out to "netstat -ib" where no procfs equivalent
// exists. Columns: Name Mtu Network Address Ipkts Ierrs Ibytes Opkts
// Oerrs Obytes Coll.
func readInterfaces() ([]InterfaceStats, error) {
	out, err := exec.Command("netstat", "-ib").Output()
	if err != nil {
		return nil, sentinelerr.Wrap(sentinelerr.KindIOError, "run netstat", err)
	}

	byName := make(map[string]InterfaceStats)
	scanner := bufio.NewScanner(strings.NewReader(string(out)))
	first := true
	for scanner.Scan() {
		if first {
			first = false
			continue
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) < 10 {
			continue
		}
		name := fields[0]
		ipkts, _ := strconv.ParseUint(fields[4], 10, 64)
		ierrs, _ := strconv.ParseUint(fields[5], 10, 64)
		ibytes, _ := strconv.ParseUint(fields[6], 10, 64)
		opkts, _ := strconv.ParseUint(fields[7], 10, 64)
		oerrs, _ := strconv.ParseUint(fields[8], 10, 64)
		obytes, _ := strconv.ParseUint(fields[9], 10, 64)

		// netstat -ib prints one row per (interface, address family); keep
		// the row with the largest byte counters seen for each name.
		existing, ok := byName[name]
		if ok && existing.BytesReceived+existing.BytesSent >= ibytes+obytes {
			continue
		}
		byName[name] = InterfaceStats{
			Name:            name,
			BytesSent:       obytes,
			BytesReceived:   ibytes,
			PacketsSent:     opkts,
			PacketsReceived: ipkts,
			ErrorsIn:        ierrs,
			ErrorsOut:       oerrs,
		}
	}

	out2 := make([]InterfaceStats, 0, len(byName))
	for _, s := range byName {
		out2 = append(out2, s)
	}
	return out2, nil
}
