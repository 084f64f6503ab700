// Package models locates the recognition model and dictionary on disk.
package models

import (
	"fmt"
	"os"
	"path/filepath"
)

// Model and dictionary file names.
const (
	RecognitionMobile = "PP-OCRv5_mobile_rec.onnx"
	RecognitionServer = "PP-OCRv5_server_rec.onnx"

	DictionaryPPOCRKeysV1 = "ppocr_keys_v1.txt"
)

// Directory layout below the models directory.
const (
	TypeRecognition  = "recognition"
	TypeDictionaries = "dictionaries"

	VariantMobile = "mobile"
	VariantServer = "server"
)

// DefaultModelsDir is used when neither a directory nor EnvModelsDir is set.
const DefaultModelsDir = "models"

// EnvModelsDir overrides the models directory.
const EnvModelsDir = "ZYNDICATOR_MODELS_DIR"

// GetModelsDir returns the models directory.
// Priority: 1. Explicit modelsDir parameter, 2. Environment variable, 3. DefaultModelsDir.
func GetModelsDir(modelsDir string) string {
	if modelsDir != "" {
		return modelsDir
	}
	if envDir := os.Getenv(EnvModelsDir); envDir != "" {
		return envDir
	}
	return DefaultModelsDir
}

// ResolveModelPath finds filename below the models directory. It tries
// <dir>/<type>/<variant>/<file>, then <dir>/<type>/<file>, then the flat
// <dir>/<file>, and returns the first that exists. When none exists the
// <dir>/<type>/<file> form is returned so error messages name the expected
// location.
func ResolveModelPath(modelsDir, modelType, variant, filename string) string {
	baseDir := GetModelsDir(modelsDir)
	if modelType == "" {
		return filepath.Join(baseDir, filename)
	}

	typed := filepath.Join(baseDir, modelType, filename)
	candidates := []string{typed, filepath.Join(baseDir, filename)}
	if variant != "" {
		candidates = append([]string{filepath.Join(baseDir, modelType, variant, filename)}, candidates...)
	}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return typed
}

// GetRecognitionModelPath returns the path of the mobile or server
// recognition model.
func GetRecognitionModelPath(modelsDir string, useServer bool) string {
	if useServer {
		return ResolveModelPath(modelsDir, TypeRecognition, VariantServer, RecognitionServer)
	}
	return ResolveModelPath(modelsDir, TypeRecognition, VariantMobile, RecognitionMobile)
}

// GetDictionaryPath returns the path of a dictionary file.
func GetDictionaryPath(modelsDir, filename string) string {
	if filename == "" {
		filename = DictionaryPPOCRKeysV1
	}
	return ResolveModelPath(modelsDir, TypeDictionaries, "", filename)
}

// ValidateModelExists checks if a model file exists at the given path.
func ValidateModelExists(modelPath string) error {
	if _, err := os.Stat(modelPath); os.IsNotExist(err) {
		return fmt.Errorf("model file not found: %s", modelPath)
	}
	return nil
}
