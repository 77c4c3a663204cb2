package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

const defaultVolumeStep = 10

// volumeParams configures the volume actions.
type volumeParams struct {
	Step int `json:"step"`
}

// scriptBuilder returns the AppleScript for one request.
type scriptBuilder func(req Request) (string, error)

var actions = map[string]scriptBuilder{
	"volume-up":        volumeScript(1),
	"volume-down":      volumeScript(-1),
	"volume-mute":      fixed(`set volume output muted (not (output muted of (get volume settings)))`),
	"media-play-pause": mediaKey(100),
	"media-next":       mediaKey(101),
	"media-prev":       mediaKey(98),
	"notify":           notifyScript,
}

func buildScript(req Request) (string, error) {
	build, ok := actions[req.Action]
	if !ok {
		return "", fmt.Errorf("unknown action: %s", req.Action)
	}
	return build(req)
}

func fixed(script string) scriptBuilder {
	return func(Request) (string, error) { return script, nil }
}

// mediaKey presses a media key through System Events.
func mediaKey(code int) scriptBuilder {
	return fixed("tell application \"System Events\"\n\tkey code " + strconv.Itoa(code) + "\nend tell")
}

// volumeScript moves the output volume by params.step (default 10) in
// direction sign.
func volumeScript(sign int) scriptBuilder {
	return func(req Request) (string, error) {
		p := volumeParams{Step: defaultVolumeStep}
		if len(req.Params) > 0 {
			if err := json.Unmarshal(req.Params, &p); err != nil {
				return "", fmt.Errorf("invalid params: %w", err)
			}
		}
		if p.Step <= 0 || p.Step > 100 {
			return "", fmt.Errorf("invalid params: step %d out of range 1-100", p.Step)
		}
		op := "+"
		if sign < 0 {
			op = "-"
		}
		return fmt.Sprintf("set volume output volume ((output volume of (get volume settings)) %s %d)", op, p.Step), nil
	}
}

// notifyScript shows a notification such as "Hand Open #3".
func notifyScript(req Request) (string, error) {
	if req.Event == "" {
		return "", fmt.Errorf("notify: request has no event")
	}
	text := fmt.Sprintf("%s #%d", req.Event, req.Count)
	return fmt.Sprintf("display notification %s with title %s", quote(text), quote("mudra")), nil
}

// quote renders s as an AppleScript string literal.
func quote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}
