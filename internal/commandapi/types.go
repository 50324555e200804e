package commandapi

import (
	"github.com/sentinel-dev/sentinel-core/internal/netsample"
	"github.com/sentinel-dev/sentinel-core/internal/portscan"
	"github.com/sentinel-dev/sentinel-core/internal/registry"
	"github.com/sentinel-dev/sentinel-core/internal/ringlog"
)

type spawnResponse struct {
	ID string `json:"id"`
}

type logsResponse struct {
	Lines []ringlog.LogLine `json:"lines"`
}

type processesResponse struct {
	Processes []registry.SupervisedProcess `json:"processes"`
}

type portsResponse struct {
	Ports []portscan.PortEntry `json:"ports"`
}

type networkHistoryResponse struct {
	Snapshots []netsample.NetworkSnapshot `json:"snapshots"`
}

type interfacesResponse struct {
	Interfaces []netsample.InterfaceStats `json:"interfaces"`
}

// errorResponse is the body of every non-2xx response.
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
