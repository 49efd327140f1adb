package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

// ScenarioSpec is one end-to-end legalization case
type ScenarioSpec struct {
	Name      string   `yaml:"name"`
	Config    string   `yaml:"config"`
	Input     string   `yaml:"input"`
	Expect    []string `yaml:"expect"`     // Strings that must appear in output
	ExpectNot []string `yaml:"expect_not"` // Strings that must NOT appear in output
	Error     string   `yaml:"error"`      // Expected failure text on stderr
	Skip      string   `yaml:"skip,omitempty"`
}

// ScenarioFile represents the scenarios.yaml file structure
type ScenarioFile struct {
	Tests []ScenarioSpec `yaml:"tests"`
}

var gcnTarget = filepath.Join("..", "..", "targets", "gcn.yaml")

func TestScenarios(t *testing.T) {
	data, err := os.ReadFile("../../testdata/scenarios.yaml")
	if err != nil {
		t.Fatalf("failed to read scenarios.yaml: %v", err)
	}

	var file ScenarioFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		t.Fatalf("failed to parse scenarios.yaml: %v", err)
	}
	if len(file.Tests) == 0 {
		t.Fatal("scenarios.yaml has no tests")
	}

	for _, tc := range file.Tests {
		t.Run(tc.Name, func(t *testing.T) {
			if tc.Skip != "" {
				t.Skip(tc.Skip)
			}

			tmpDir := t.TempDir()
			testFile := filepath.Join(tmpDir, "test.gmir")
			if err := os.WriteFile(testFile, []byte(tc.Input), 0644); err != nil {
				t.Fatalf("failed to write test file: %v", err)
			}
			args := []string{"--dlegal", "--no-color", "--target", gcnTarget}
			if tc.Config != "" {
				configFile := filepath.Join(tmpDir, "legalize.toml")
				if err := os.WriteFile(configFile, []byte(tc.Config), 0644); err != nil {
					t.Fatalf("failed to write config: %v", err)
				}
				args = append(args, "--config", configFile)
			}

			resetFlags()
			var out, errOut bytes.Buffer
			cmd := newRootCmd(&out, &errOut)
			cmd.SetArgs(append(args, testFile))
			err := cmd.Execute()

			if tc.Error != "" {
				if err == nil {
					t.Fatalf("expected failure, got output:\n%s", out.String())
				}
				if !strings.Contains(errOut.String(), tc.Error) {
					t.Errorf("expected stderr to contain %q, got:\n%s", tc.Error, errOut.String())
				}
				return
			}
			if err != nil {
				t.Fatalf("ralph-legalize failed: %v\nStderr: %s", err, errOut.String())
			}

			output := out.String()
			for _, exp := range tc.Expect {
				if !strings.Contains(output, exp) {
					t.Errorf("expected output to contain %q\nGot:\n%s", exp, output)
				}
			}
			for _, notExp := range tc.ExpectNot {
				if strings.Contains(output, notExp) {
					t.Errorf("expected output NOT to contain %q\nGot:\n%s", notExp, output)
				}
			}
		})
	}
}
