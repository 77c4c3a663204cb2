// Command system-control is a mudra hook plugin for macOS. It maps open and
// close transitions to media, volume and notification actions through
// AppleScript.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"time"
)

// Request is the hook request read from stdin.
type Request struct {
	Action    string          `json:"action"`
	Event     string          `json:"event"`
	Label     string          `json:"label"`
	SessionID string          `json:"session_id"`
	Count     int             `json:"count"`
	At        time.Time       `json:"at"`
	Params    json.RawMessage `json:"params"`
}

// Response is written to stdout.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func main() {
	var req Request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		writeResponse(Response{Error: fmt.Sprintf("failed to decode request: %v", err)})
		return
	}

	script, err := buildScript(req)
	if err != nil {
		writeResponse(Response{Error: err.Error()})
		return
	}

	if err := runAppleScript(script); err != nil {
		writeResponse(Response{Error: fmt.Sprintf("action %s failed: %v", req.Action, err)})
		return
	}

	writeResponse(Response{Success: true})
}

func writeResponse(resp Response) {
	json.NewEncoder(os.Stdout).Encode(resp)
}

func runAppleScript(script string) error {
	cmd := exec.Command("osascript", "-e", script)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s", err, string(output))
	}
	return nil
}
