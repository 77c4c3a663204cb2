package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/gesture"
)

// landmarkFile is one recorded hand: either {"points": [...]} or a bare
// array of 21 {"x","y","z"} points.
type landmarkFile struct {
	Points []detector.Point3D `json:"points"`
}

func newClassifyCmd(opts *options) *cobra.Command {
	var (
		asJSON    bool
		thumbRule string
	)

	cmd := &cobra.Command{
		Use:   "classify <landmarks.json|->",
		Short: "Classify a recorded landmark set offline",
		Long: "Classify a recorded set of 21 hand landmarks with the configured thumb rule.\n" +
			"The file holds either {\"points\": [...]} or a bare array of {\"x\",\"y\",\"z\"} points.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("thumb-rule") {
				opts.cfg.Classifier.ThumbRule = thumbRule
			}
			rule, err := gesture.ParseThumbRule(opts.cfg.Classifier.ThumbRule)
			if err != nil {
				return err
			}

			points, err := readLandmarks(args[0], cmd.InOrStdin())
			if err != nil {
				return err
			}

			result, err := gesture.NewClassifier(rule).ClassifyPoints(points)
			if err != nil {
				return err
			}
			return writeResult(cmd.OutOrStdout(), result, rule, asJSON)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	cmd.Flags().StringVar(&thumbRule, "thumb-rule", "", "thumb rule: distance or lateral (overrides classifier.thumb_rule)")
	return cmd
}

func readLandmarks(path string, stdin io.Reader) ([]detector.Point3D, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read landmarks: %w", err)
	}

	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var points []detector.Point3D
		if err := json.Unmarshal(data, &points); err != nil {
			return nil, fmt.Errorf("failed to parse landmarks: %w", err)
		}
		return points, nil
	}

	var f landmarkFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse landmarks: %w", err)
	}
	return f.Points, nil
}

func writeResult(out io.Writer, result gesture.Result, rule gesture.ThumbRule, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			gesture.Result
			ThumbRule gesture.ThumbRule `json:"thumb_rule"`
		}{result, rule})
	}

	fmt.Fprintf(out, "Gesture: %s\n", result.Label)
	fmt.Fprintf(out, "Fingers raised: %d\n", result.FingersRaised)
	fmt.Fprintf(out, "Open fingers (%s thumb rule): %d\n", rule, result.OpenFingers)
	return nil
}
