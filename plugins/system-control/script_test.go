package main

import (
	"encoding/json"
	"os"
	"strings"
	"testing"
)

func TestBuildScript(t *testing.T) {
	tests := []struct {
		name    string
		req     Request
		want    string
		wantErr bool
	}{
		{
			name: "volume up default step",
			req:  Request{Action: "volume-up"},
			want: "set volume output volume ((output volume of (get volume settings)) + 10)",
		},
		{
			name: "volume down custom step",
			req:  Request{Action: "volume-down", Params: json.RawMessage(`{"step": 25}`)},
			want: "set volume output volume ((output volume of (get volume settings)) - 25)",
		},
		{
			name:    "volume step out of range",
			req:     Request{Action: "volume-up", Params: json.RawMessage(`{"step": 0}`)},
			wantErr: true,
		},
		{
			name:    "volume params malformed",
			req:     Request{Action: "volume-up", Params: json.RawMessage(`{"step": "big"}`)},
			wantErr: true,
		},
		{
			name: "media key",
			req:  Request{Action: "media-play-pause"},
			want: "tell application \"System Events\"\n\tkey code 100\nend tell",
		},
		{
			name: "notify",
			req:  Request{Action: "notify", Event: "Hand Open", Count: 3},
			want: `display notification "Hand Open #3" with title "mudra"`,
		},
		{
			name:    "notify without event",
			req:     Request{Action: "notify"},
			wantErr: true,
		},
		{
			name:    "unknown action",
			req:     Request{Action: "brightness-up"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := buildScript(tt.req)
			if (err != nil) != tt.wantErr {
				t.Fatalf("buildScript() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("buildScript() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestQuote(t *testing.T) {
	got := quote(`say "hi" \ bye`)
	if !strings.HasPrefix(got, `"`) || got != `"say \"hi\" \\ bye"` {
		t.Errorf("quote() = %s", got)
	}
}

func TestManifestListsActions(t *testing.T) {
	data, err := os.ReadFile("plugin.json")
	if err != nil {
		t.Fatalf("reading manifest: %v", err)
	}
	var manifest struct {
		Name    string   `json:"name"`
		Actions []string `json:"actions"`
	}
	if err := json.Unmarshal(data, &manifest); err != nil {
		t.Fatalf("parsing manifest: %v", err)
	}
	if manifest.Name != "system-control" {
		t.Errorf("name = %q, want system-control", manifest.Name)
	}
	if len(manifest.Actions) != len(actions) {
		t.Errorf("manifest lists %d actions, plugin handles %d", len(manifest.Actions), len(actions))
	}
	for _, a := range manifest.Actions {
		if _, ok := actions[a]; !ok {
			t.Errorf("manifest action %q has no handler", a)
		}
	}
}
