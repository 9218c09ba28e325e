package helper

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knights-analytics/hugot"
)

const defaultModelDir = "./models"

// ModelDir is the directory local embedding models are kept in (MODEL_DIR, default ./models).
func ModelDir() string {
	return getEnv("MODEL_DIR", defaultModelDir)
}

// ModelPath returns where PrepareModel keeps modelName.
// Slashes in the model name are replaced to get a flat directory name.
func ModelPath(modelName string) string {
	return filepath.Join(ModelDir(), strings.ReplaceAll(modelName, "/", "_"))
}

// PrepareModel downloads the model if it doesn't exist and returns the model path.
func PrepareModel(modelName string, onnxFilePath string) (string, error) {
	modelPath := ModelPath(modelName)

	_, err := os.Stat(modelPath)
	if err == nil {
		return modelPath, nil
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("failed to stat model directory: %w", err)
	}

	dir := ModelDir()
	if err := os.MkdirAll(dir, 0750); err != nil {
		return "", fmt.Errorf("failed to create model directory: %w", err)
	}

	downloadOptions := hugot.NewDownloadOptions()
	if onnxFilePath != "" {
		downloadOptions.OnnxFilePath = onnxFilePath
	}
	downloadedPath, err := hugot.DownloadModel(modelName, dir, downloadOptions)
	if err != nil {
		return "", fmt.Errorf("failed to download model: %w", err)
	}

	return downloadedPath, nil
}
