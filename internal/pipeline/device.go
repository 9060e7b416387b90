package pipeline

import (
	"bufio"
	"context"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Device kinds
const (
	DeviceCUDA = "cuda"
	DeviceCPU  = "cpu"
)

// Device is the compute device a pipeline is bound to.
type Device struct {
	Kind string
	Name string
}

// Accelerated reports whether the device is a GPU.
func (d Device) Accelerated() bool { return d.Kind == DeviceCUDA }

func (d Device) String() string {
	if d.Name != "" {
		return d.Kind + " (" + d.Name + ")"
	}
	return d.Kind
}

// GPUProbe reports the name of the first visible GPU, or "" when none.
type GPUProbe func(ctx context.Context) string

// NvidiaSMIProbe queries nvidia-smi for the first GPU name.
func NvidiaSMIProbe(ctx context.Context) string {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	out, err := exec.CommandContext(ctx, "nvidia-smi", "--query-gpu=name", "--format=csv,noheader").Output()
	if err != nil {
		return ""
	}
	return parseGPUName(string(out))
}

func parseGPUName(out string) string {
	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		if name := strings.TrimSpace(sc.Text()); name != "" {
			return name
		}
	}
	return ""
}

// SelectDevice resolves a preference of "auto", "cuda" or "cpu" to a Device.
// A forced "cuda" without a visible GPU falls back to the CPU.
func SelectDevice(ctx context.Context, preference string, probe GPUProbe, log zerolog.Logger) Device {
	if preference == DeviceCPU {
		return Device{Kind: DeviceCPU}
	}

	name := ""
	if probe != nil {
		name = probe(ctx)
	}
	if name != "" {
		return Device{Kind: DeviceCUDA, Name: name}
	}

	if preference == DeviceCUDA {
		log.Warn().Msg("CUDA requested but no GPU found, using CPU")
	}
	return Device{Kind: DeviceCPU}
}
