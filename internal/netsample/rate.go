package netsample

// Rate derives the instantaneous upload rate in bytes/sec between two
// consecutive snapshots. History stores only cumulative counters; rate
// is always a consumer-side view over two samples.
func Rate(prev, cur NetworkSnapshot) float64 {
	dt := cur.Timestamp.Sub(prev.Timestamp).Seconds()
	if dt <= 0 {
		return 0
	}
	delta := float64(cur.TotalBytesSent) - float64(prev.TotalBytesSent)
	if delta < 0 {
		// A backward step means a counter reset (reboot); treat as zero
		// rather than reporting a negative throughput.
		return 0
	}
	return delta / dt
}
