package program

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"go.uber.org/zap"
)

// p4cGraphs is the external p4c back end used to turn P4 source into IR
// JSON.
const p4cGraphs = "p4c-graphs"

// ReadIRJSON returns the IR JSON document for each given file. With
// alreadyJSON set the files are read as-is; otherwise each file is run
// through p4c-graphs in a temporary directory first.
func ReadIRJSON(ctx context.Context, paths []string, alreadyJSON bool, logger *zap.Logger) ([][]byte, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !alreadyJSON {
		if _, err := exec.LookPath(p4cGraphs); err != nil {
			return nil, fmt.Errorf("required tool %q not found in PATH", p4cGraphs)
		}
	}

	out := make([][]byte, 0, len(paths))
	for _, path := range paths {
		if alreadyJSON {
			data, err := os.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("could not read %q: %w", path, err)
			}
			out = append(out, data)
			continue
		}

		data, err := convertWithP4C(ctx, path, logger)
		if err != nil {
			return nil, err
		}
		out = append(out, data)
	}
	return out, nil
}

// convertWithP4C shells out to p4c-graphs to produce IR JSON for one file.
func convertWithP4C(ctx context.Context, path string, logger *zap.Logger) ([]byte, error) {
	tempDir, err := os.MkdirTemp("", "octopus-ir-")
	if err != nil {
		return nil, fmt.Errorf("could not create temporary directory: %w", err)
	}
	defer os.RemoveAll(tempDir)

	irFile := filepath.Join(tempDir, "IR.json")
	cmd := exec.CommandContext(ctx, p4cGraphs, "--toJSON", irFile, "--graphs-dir", tempDir, path)
	if output, err := cmd.CombinedOutput(); err != nil {
		logger.Error("p4c-graphs failed",
			zap.String("file", path),
			zap.ByteString("output", output))
		return nil, fmt.Errorf("%s failed for %q: %w", p4cGraphs, path, err)
	}
	logger.Info("converted P4 file to IR JSON", zap.String("file", path))

	data, err := os.ReadFile(irFile)
	if err != nil {
		return nil, fmt.Errorf("could not read p4c-graphs output for %q: %w", path, err)
	}
	return data, nil
}
