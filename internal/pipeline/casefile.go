// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"fmt"
	"os"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/evidence-engine/pkg/types"
)

// CaseFile is the on-disk representation of one assessment run. A
// clinician can save an assessment to a file and reload it later without
// re-running the pipeline.
type CaseFile struct {
	Transcript          string               `yaml:"transcript"`
	AccumulatedSymptoms []string             `yaml:"accumulated_symptoms,omitempty"`
	Result              types.PipelineResult `yaml:"result"`
	Timestamp           time.Time            `yaml:"timestamp"`
}

// WriteCaseFile saves the transcript and pipeline result to a YAML file.
func WriteCaseFile(path, transcript string, accumulated []string, result types.PipelineResult) error {
	cf := CaseFile{
		Transcript:          transcript,
		AccumulatedSymptoms: accumulated,
		Result:              result,
		Timestamp:           time.Now(),
	}

	data, err := yaml.Marshal(&cf)
	if err != nil {
		return fmt.Errorf("marshaling case file: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadCaseFile loads a previously saved case file from disk.
func ReadCaseFile(path string) (*CaseFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading case file: %w", err)
	}
	var cf CaseFile
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, fmt.Errorf("parsing case file: %w", err)
	}
	return &cf, nil
}
