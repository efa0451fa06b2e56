package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"annotify/internal/annotator"
	"annotify/internal/annotator/scenarios"
	"annotify/internal/engine"
)

var (
	runArtifactsPath string
	runScenario      string
	runModel         string
	runTimeoutMs     int
	runMaxArtifacts  int
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a guided annotation batch interactively",
	Long: `Reads artifact metadata from a JSON or YAML file, then walks each
artifact through the two-step conversation, reading your replies from
stdin. Without GEMINI_API_KEY (or with --scenario) a local annotator
stands in for the model.`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVarP(&runArtifactsPath, "artifacts", "f", "", "path to artifact metadata file (JSON or YAML, required)")
	runCmd.Flags().StringVar(&runScenario, "scenario", "", "replay a named scripted scenario instead of calling a model")
	runCmd.Flags().StringVar(&runModel, "model", "gemini-2.0-flash", "model name for the gemini annotator")
	runCmd.Flags().IntVar(&runTimeoutMs, "timeout-ms", 60000, "per-call annotation timeout in milliseconds")
	runCmd.Flags().IntVar(&runMaxArtifacts, "max-artifacts", engine.DefaultMaxArtifacts, "maximum artifacts per batch")
	_ = runCmd.MarkFlagRequired("artifacts")
}

type artifactFile struct {
	Artifacts []struct {
		ID     string            `yaml:"id" json:"id"`
		Name   string            `yaml:"name" json:"name"`
		Fields map[string]string `yaml:"fields" json:"fields"`
	} `yaml:"artifacts" json:"artifacts"`
}

func loadArtifacts(path string) ([]*engine.Artifact, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read artifacts file: %w", err)
	}
	var doc artifactFile
	// YAML is a superset of JSON, so one decoder covers both formats.
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse artifacts file: %w", err)
	}
	var artifacts []*engine.Artifact
	for _, a := range doc.Artifacts {
		id := a.ID
		if id == "" {
			id = a.Name
		}
		name := a.Name
		if name == "" {
			name = id
		}
		artifacts = append(artifacts, &engine.Artifact{ID: id, Name: name, Fields: a.Fields})
	}
	return artifacts, nil
}

func buildClient(cmd *cobra.Command) (annotator.Client, error) {
	if runScenario != "" {
		s, err := scenarios.Load(runScenario)
		if err != nil {
			return nil, err
		}
		return annotator.NewScriptedClient(s), nil
	}
	if os.Getenv("GEMINI_API_KEY") != "" {
		client, err := annotator.NewGeminiClient(cmd.Context(), runModel)
		if err != nil {
			return nil, err
		}
		return annotator.Wrap(client,
			annotator.Logging(),
			annotator.Retry(3, 0),
			annotator.RateLimitFromEnv("ANNOTATE", "GEMINI"),
		), nil
	}
	fmt.Fprintln(os.Stderr, "no GEMINI_API_KEY set; using the fake annotator")
	return annotator.NewFakeClient(), nil
}

func runRun(cmd *cobra.Command, _ []string) error {
	artifacts, err := loadArtifacts(runArtifactsPath)
	if err != nil {
		return err
	}
	client, err := buildClient(cmd)
	if err != nil {
		return err
	}
	defer client.Close()

	ctrl := engine.NewController(annotator.New(client), time.Duration(runTimeoutMs)*time.Millisecond)
	batch, err := engine.NewBatch(ctrl, artifacts, runMaxArtifacts)
	if err != nil {
		return err
	}

	fmt.Printf("Annotating %d artifact(s).\n\n", len(artifacts))
	fmt.Printf("[%s] %s\n", batch.CurrentArtifact().ID, batch.Prompt())

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		res, err := batch.Submit(cmd.Context(), scanner.Text())
		if err != nil {
			if engine.IsEmptyReply(err) {
				fmt.Println("(a reply is required)")
				continue
			}
			return err
		}
		if res.Failure != nil {
			fmt.Fprintf(os.Stderr, "[%s] annotation failed at %s: %v\n",
				res.Failure.ArtifactID, res.Failure.Step, res.Failure.Err)
		}
		if res.BatchComplete {
			return printResults(res.Annotations, res.Failures)
		}
		fmt.Printf("[%s] %s\n", res.NextArtifact.ID, res.Prompt)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read stdin: %w", err)
	}
	return fmt.Errorf("input closed before the batch completed")
}

func printResults(annotations []*engine.Annotation, failures []engine.Failure) error {
	out := struct {
		Annotations []*engine.Annotation `json:"annotations"`
		Failures    []map[string]string  `json:"failures,omitempty"`
	}{Annotations: annotations}
	for _, f := range failures {
		out.Failures = append(out.Failures, map[string]string{
			"artifact_id": f.ArtifactID,
			"step":        string(f.Step),
			"message":     f.Err.Error(),
		})
	}
	raw, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(raw))
	return nil
}
