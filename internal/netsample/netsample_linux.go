//go:build linux

package netsample

import (
	"github.com/prometheus/procfs"

	"github.com/sentinel-dev/sentinel-core/internal/sentinelerr"
)

func readInterfaces() ([]InterfaceStats, error) {
	fs, err := procfs.NewDefaultFS()
	if err != nil {
		return nil, sentinelerr.Wrap(sentinelerr.KindIOError, "open procfs", err)
	}
	devs, err := fs.NetDev()
	if err != nil {
		return nil, sentinelerr.Wrap(sentinelerr.KindIOError, "read /proc/net/dev", err)
	}

	out := make([]InterfaceStats, 0, len(devs))
	for name, d := range devs {
		out = append(out, InterfaceStats{
			Name:            name,
			BytesSent:       d.TxBytes,
			BytesReceived:   d.RxBytes,
			PacketsSent:     d.TxPackets,
			PacketsReceived: d.RxPackets,
			ErrorsIn:        d.RxErrors,
			ErrorsOut:       d.TxErrors,
		})
	}
	return out, nil
}
