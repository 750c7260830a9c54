package nvidia

import (
	"context"
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"

	"github.com/jguan/llmfit/pkg/infra/hal"
)

const defaultSMIPath = "nvidia-smi"

// SMI wraps the nvidia-smi binary.
type SMI struct {
	path string
	run  hal.CommandRunner
}

func NewSMI(path string, run hal.CommandRunner) *SMI {
	if path == "" {
		path = defaultSMIPath
	}
	if run == nil {
		run = hal.ExecRunner(hal.DefaultProbeTimeout)
	}
	return &SMI{path: path, run: run}
}

type smiOutput struct {
	AttachedGPUs int      `xml:"attached_gpus"`
	GPUs         []smiGPU `xml:"gpu"`
}

type smiGPU struct {
	ID            string `xml:"id,attr"`
	ProductName   string `xml:"product_name"`
	ProductBrand  string `xml:"product_brand"`
	UUID          string `xml:"uuid"`
	FBMemoryUsage struct {
		Total string `xml:"total"`
		Used  string `xml:"used"`
		Free  string `xml:"free"`
	} `xml:"fb_memory_usage"`
}

func (s *SMI) Available(ctx context.Context) bool {
	_, err := s.run(ctx, s.path, "--version")
	return err == nil
}

func (s *SMI) Query(ctx context.Context) (*smiOutput, error) {
	output, err := s.run(ctx, s.path, "-q", "-x")
	if err != nil {
		return nil, err
	}
	return parseSMI(output)
}

func parseSMI(output []byte) (*smiOutput, error) {
	var result smiOutput
	if err := xml.Unmarshal(output, &result); err != nil {
		return nil, hal.ErrCommandFailed.WithCause(
			fmt.Errorf("parse nvidia-smi output: %w", err))
	}
	return &result, nil
}

// parseMemoryMiB reads values like "24564 MiB". ok is false for "N/A" and
// anything else that is not a number of MiB.
func parseMemoryMiB(s string) (mib float64, ok bool) {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "MiB")
	s = strings.TrimSpace(s)
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 {
		return 0, false
	}
	return v, true
}
