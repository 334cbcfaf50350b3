package engine

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"janussim/internal/models"
)

// File names exchanged with the external solver in its work directory.
const (
	RequestFile = "request.json"
	VolumeFile  = "volume.bin"
	ResultFile  = "flux.json"
	FluxFile    = "flux.bin"
)

// Exit codes the solver bridge uses to classify its failures. Any other
// non-zero code is treated as a rejection.
const (
	ExitRejected    = 2
	ExitUnavailable = 3
)

// VolumeDescriptor points the solver at the raw label grid.
type VolumeDescriptor struct {
	File  string `json:"file"`
	Dims  [3]int `json:"dims"`
	DType string `json:"dtype"`
	// Order is "F": x varies fastest, matching a column-major [x, y, z] array
	Order string `json:"order"`
}

// WireRequest is the request.json document. Keys follow the solver's own
// configuration names.
type WireRequest struct {
	NPhoton int64            `json:"nphoton"`
	Vol     VolumeDescriptor `json:"vol"`
	Prop    [][4]float64     `json:"prop"`
	SrcPos  [3]float64       `json:"srcpos"`
	SrcDir  [3]float64       `json:"srcdir"`
	TStart  float64          `json:"tstart"`
	TEnd    float64          `json:"tend"`
	TStep   float64          `json:"tstep"`
	GPUID   int              `json:"gpuid"`
	IsGPU   int              `json:"isgpu"`
	Seed    int64            `json:"seed,omitempty"`
}

// WireResult is the flux.json document written by the solver bridge.
type WireResult struct {
	File  string `json:"file"`
	Dims  [4]int `json:"dims"`
	DType string `json:"dtype"`
}

// ExternalEngine runs a solver bridge process for every request. The bridge
// receives its work directory as the last argument, reads request.json and
// volume.bin from it and writes flux.json and flux.bin (little-endian
// float32, x fastest, then y, z and time).
type ExternalEngine struct {
	// Command is the bridge executable followed by its fixed arguments
	Command []string

	// WorkDir is where per-run directories are created; empty means the
	// system temporary directory
	WorkDir string

	// KeepWorkDir leaves run directories in place for inspection
	KeepWorkDir bool

	// Env holds extra KEY=value pairs added to the bridge environment
	Env []string
}

// NewExternalEngine creates an engine running the given command
func NewExternalEngine(command []string, workDir string) *ExternalEngine {
	return &ExternalEngine{
		Command: command,
		WorkDir: workDir,
	}
}

// Run implements Engine.
func (e *ExternalEngine) Run(ctx context.Context, req *Request) (*models.FluxField, error) {
	if len(e.Command) == 0 {
		return nil, e.fail(models.EngineUnavailable, errors.New("no solver command configured"))
	}

	base := e.WorkDir
	if base == "" {
		base = os.TempDir()
	}
	runDir := filepath.Join(base, "janussim-"+uuid.NewString())
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return nil, e.fail(models.EngineUnavailable, fmt.Errorf("failed to create work directory: %w", err))
	}
	if !e.KeepWorkDir {
		defer os.RemoveAll(runDir)
	}

	if err := WriteRequest(runDir, req); err != nil {
		return nil, e.fail(models.EngineUnavailable, err)
	}

	args := append(append([]string{}, e.Command[1:]...), runDir)
	cmd := exec.CommandContext(ctx, e.Command[0], args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if len(e.Env) > 0 {
		cmd.Env = append(os.Environ(), e.Env...)
	}

	if err := cmd.Run(); err != nil {
		return nil, e.classify(ctx, err, stderr.String())
	}

	flux, err := ReadResult(runDir)
	if err != nil {
		return nil, e.fail(models.EngineRejected, err)
	}
	if err := checkResult(ExternalName, req, flux); err != nil {
		return nil, err
	}
	return flux, nil
}

func (e *ExternalEngine) fail(kind models.EngineErrorKind, err error) error {
	return &models.EngineError{Engine: ExternalName, Kind: kind, Err: err}
}

// classify maps a failed process run onto an engine error kind.
func (e *ExternalEngine) classify(ctx context.Context, err error, stderr string) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return e.fail(models.EngineUnavailable, ctxErr)
	}
	if errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist) {
		return e.fail(models.EngineUnavailable, err)
	}

	msg := strings.TrimSpace(stderr)
	if len(msg) > 512 {
		msg = "..." + msg[len(msg)-512:]
	}
	if msg != "" {
		err = fmt.Errorf("%w: %s", err, msg)
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		switch exitErr.ExitCode() {
		case ExitRejected:
			return e.fail(models.EngineRejected, err)
		case ExitUnavailable:
			return e.fail(models.EngineUnavailable, err)
		}
	}
	return e.fail(models.EngineRejected, err)
}

// WriteRequest writes request.json and volume.bin into dir.
func WriteRequest(dir string, req *Request) error {
	vol := req.Volume()
	src := req.Source()
	win := req.Window()
	hints := req.Hints()

	wire := WireRequest{
		NPhoton: req.Photons(),
		Vol: VolumeDescriptor{
			File:  VolumeFile,
			Dims:  [3]int{vol.Width, vol.Height, vol.Depth},
			DType: "uint8",
			Order: "F",
		},
		Prop:   req.Table().Rows(),
		SrcPos: src.Position,
		SrcDir: src.Direction,
		TStart: win.Start,
		TEnd:   win.End,
		TStep:  win.Step,
		GPUID:  hints.GPUID,
		Seed:   hints.Seed,
	}
	if hints.UseGPU {
		wire.IsGPU = 1
	}

	data, err := json.MarshalIndent(wire, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, RequestFile), data, 0644); err != nil {
		return fmt.Errorf("failed to write request: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, VolumeFile), vol.Labels(), 0644); err != nil {
		return fmt.Errorf("failed to write volume: %w", err)
	}
	return nil
}

// ReadRequest reads a request written by WriteRequest. It returns the wire
// document and the raw label grid.
func ReadRequest(dir string) (*WireRequest, []uint8, error) {
	data, err := os.ReadFile(filepath.Join(dir, RequestFile))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read request: %w", err)
	}
	var wire WireRequest
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, nil, fmt.Errorf("failed to parse request: %w", err)
	}
	labels, err := os.ReadFile(filepath.Join(dir, wire.Vol.File))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read volume: %w", err)
	}
	n, err := cellCount(wire.Vol.Dims[:], 1)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid volume dimensions %v: %w", wire.Vol.Dims, err)
	}
	if int64(len(labels)) != n {
		return nil, nil, fmt.Errorf("volume holds %d labels, expected %d", len(labels), n)
	}
	return &wire, labels, nil
}

// WriteResult writes flux.json and flux.bin into dir. It is the inverse of
// ReadResult and is used by solver bridges written in Go.
func WriteResult(dir string, flux *models.FluxField) error {
	meta := WireResult{
		File:  FluxFile,
		Dims:  [4]int{flux.Width, flux.Height, flux.Depth, flux.TimeBins},
		DType: "float32",
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, ResultFile), data, 0644); err != nil {
		return fmt.Errorf("failed to write result: %w", err)
	}

	values := make([]float32, len(flux.Data))
	for i, v := range flux.Data {
		values[i] = float32(v)
	}
	file, err := os.Create(filepath.Join(dir, FluxFile))
	if err != nil {
		return fmt.Errorf("failed to create flux file: %w", err)
	}
	if err := binary.Write(file, binary.LittleEndian, values); err != nil {
		file.Close()
		return fmt.Errorf("failed to write flux data: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to close flux file: %w", err)
	}
	return nil
}

// cellCount multiplies dims, failing on non-positive extents or when the
// product times elemSize would not fit in an int.
func cellCount(dims []int, elemSize int64) (int64, error) {
	limit := int64(math.MaxInt) / elemSize
	total := int64(1)
	for _, d := range dims {
		if d <= 0 {
			return 0, errors.New("extents must be positive")
		}
		if total > limit/int64(d) {
			return 0, errors.New("size overflows")
		}
		total *= int64(d)
	}
	return total, nil
}

// ReadResult loads the flux field a solver bridge left in dir.
func ReadResult(dir string) (*models.FluxField, error) {
	data, err := os.ReadFile(filepath.Join(dir, ResultFile))
	if err != nil {
		return nil, fmt.Errorf("failed to read result: %w", err)
	}
	var meta WireResult
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("failed to parse result: %w", err)
	}
	if meta.DType != "" && meta.DType != "float32" {
		return nil, fmt.Errorf("unsupported flux dtype %q", meta.DType)
	}
	cells, err := cellCount(meta.Dims[:], 4)
	if err != nil {
		return nil, fmt.Errorf("invalid flux dimensions %v: %w", meta.Dims, err)
	}
	name := meta.File
	if name == "" {
		name = FluxFile
	}

	file, err := os.Open(filepath.Join(dir, filepath.Base(name)))
	if err != nil {
		return nil, fmt.Errorf("failed to open flux file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat flux file: %w", err)
	}
	if info.Size() != cells*4 {
		return nil, fmt.Errorf("flux file holds %d bytes, dimensions %v need %d", info.Size(), meta.Dims, cells*4)
	}

	flux := models.NewFluxField(meta.Dims[0], meta.Dims[1], meta.Dims[2], meta.Dims[3])
	values := make([]float32, len(flux.Data))
	if err := binary.Read(file, binary.LittleEndian, values); err != nil {
		return nil, fmt.Errorf("failed to read flux data: %w", err)
	}
	for i, v := range values {
		flux.Data[i] = float64(v)
	}
	return flux, nil
}
