package commandapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"

	"github.com/sentinel-dev/sentinel-core/internal/netsample"
	"github.com/sentinel-dev/sentinel-core/internal/portscan"
	"github.com/sentinel-dev/sentinel-core/internal/registry"
	"github.com/sentinel-dev/sentinel-core/internal/ringlog"
	"github.com/sentinel-dev/sentinel-core/internal/supervisor"
)

// Client talks to a Server over its Unix socket. It is the one
// implementation a CLI or GUI front-end needs against the command
// surface.
type Client struct {
	socketPath string
	http       *http.Client
}

// NewClient creates a Client dialing socketPath for every request.
func NewClient(socketPath string) *Client {
	return &Client{
		socketPath: socketPath,
		http: &http.Client{
			Transport: &http.Transport{
				DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
					var d net.Dialer
					return d.DialContext(ctx, "unix", socketPath)
				},
			},
		},
	}
}

func (c *Client) SpawnProcess(spec supervisor.ProcessSpec) (string, error) {
	body, err := json.Marshal(spec)
	if err != nil {
		return "", err
	}
	resp, err := c.post("/processes", body)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if err := checkStatus(resp, http.StatusCreated); err != nil {
		return "", err
	}
	var out spawnResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	return out.ID, nil
}

func (c *Client) StopProcess(id string) error {
	resp, err := c.post("/processes/"+id+"/stop", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return checkStatus(resp, http.StatusNoContent)
}

func (c *Client) RestartProcess(id string) error {
	resp, err := c.post("/processes/"+id+"/restart", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return checkStatus(resp, http.StatusNoContent)
}

func (c *Client) ListProcesses() ([]registry.SupervisedProcess, error) {
	resp, err := c.get("/processes")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if err := checkStatus(resp, http.StatusOK); err != nil {
		return nil, err
	}
	var out processesResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return out.Processes, nil
}

func (c *Client) GetLogs(id string, limit int) ([]ringlog.LogLine, error) {
	path := "/processes/" + id + "/logs"
	if limit > 0 {
		path += fmt.Sprintf("?limit=%d", limit)
	}
	resp, err := c.get(path)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if err := checkStatus(resp, http.StatusOK); err != nil {
		return nil, err
	}
	var out logsResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return out.Lines, nil
}

func (c *Client) ClearLogs(id string) error {
	resp, err := c.post("/processes/"+id+"/logs/clear", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return checkStatus(resp, http.StatusNoContent)
}

func (c *Client) ScanPorts() ([]portscan.PortEntry, error) {
	resp, err := c.get("/ports")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if err := checkStatus(resp, http.StatusOK); err != nil {
		return nil, err
	}
	var out portsResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return out.Ports, nil
}

func (c *Client) KillProcessByPort(port uint16) error {
	resp, err := c.post(fmt.Sprintf("/ports/%d/kill", port), nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return checkStatus(resp, http.StatusNoContent)
}

func (c *Client) GetNetworkStats() (netsample.NetworkSnapshot, error) {
	resp, err := c.get("/network/stats")
	if err != nil {
		return netsample.NetworkSnapshot{}, err
	}
	defer resp.Body.Close()
	if err := checkStatus(resp, http.StatusOK); err != nil {
		return netsample.NetworkSnapshot{}, err
	}
	var out netsample.NetworkSnapshot
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return netsample.NetworkSnapshot{}, fmt.Errorf("decode response: %w", err)
	}
	return out, nil
}

func (c *Client) GetNetworkHistory(durationSeconds int) ([]netsample.NetworkSnapshot, error) {
	path := "/network/history"
	if durationSeconds > 0 {
		path += fmt.Sprintf("?duration_seconds=%d", durationSeconds)
	}
	resp, err := c.get(path)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if err := checkStatus(resp, http.StatusOK); err != nil {
		return nil, err
	}
	var out networkHistoryResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return out.Snapshots, nil
}

func (c *Client) GetNetworkInterfaces() ([]netsample.InterfaceStats, error) {
	resp, err := c.get("/network/interfaces")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if err := checkStatus(resp, http.StatusOK); err != nil {
		return nil, err
	}
	var out interfacesResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return out.Interfaces, nil
}

func (c *Client) ClearNetworkHistory() error {
	resp, err := c.post("/network/history/clear", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return checkStatus(resp, http.StatusNoContent)
}

func (c *Client) get(path string) (*http.Response, error) {
	return c.http.Get("http://sentinel" + path)
}

func (c *Client) post(path string, body []byte) (*http.Response, error) {
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	return c.http.Post("http://sentinel"+path, "application/json", r)
}

func checkStatus(resp *http.Response, expected int) error {
	if resp.StatusCode == expected {
		return nil
	}
	body, _ := io.ReadAll(resp.Body)
	var errResp errorResponse
	if json.Unmarshal(body, &errResp) == nil && errResp.Message != "" {
		return fmt.Errorf("HTTP %d (%s): %s", resp.StatusCode, errResp.Error, errResp.Message)
	}
	return fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
}
