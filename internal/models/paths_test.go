package models

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))
}

func TestGetModelsDir(t *testing.T) {
	tests := []struct {
		name        string
		explicitDir string
		envVar      string
		want        string
	}{
		{"explicit directory takes precedence", "/explicit/path", "/env/path", "/explicit/path"},
		{"environment variable used when no explicit dir", "", "/env/path", "/env/path"},
		{"default when nothing set", "", "", DefaultModelsDir},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(EnvModelsDir, tt.envVar)
			assert.Equal(t, tt.want, GetModelsDir(tt.explicitDir))
		})
	}
}

func TestResolveModelPath_Missing(t *testing.T) {
	dir := t.TempDir()
	assert.Equal(t,
		filepath.Join(dir, TypeRecognition, RecognitionMobile),
		GetRecognitionModelPath(dir, false))
	assert.Equal(t,
		filepath.Join(dir, TypeDictionaries, DictionaryPPOCRKeysV1),
		GetDictionaryPath(dir, ""))
}

func TestResolveModelPath_Preference(t *testing.T) {
	dir := t.TempDir()

	flat := filepath.Join(dir, RecognitionServer)
	touch(t, flat)
	assert.Equal(t, flat, GetRecognitionModelPath(dir, true))

	typed := filepath.Join(dir, TypeRecognition, RecognitionServer)
	touch(t, typed)
	assert.Equal(t, typed, GetRecognitionModelPath(dir, true))

	variant := filepath.Join(dir, TypeRecognition, VariantServer, RecognitionServer)
	touch(t, variant)
	assert.Equal(t, variant, GetRecognitionModelPath(dir, true))

	// The mobile model is still missing.
	assert.Equal(t, filepath.Join(dir, TypeRecognition, RecognitionMobile), GetRecognitionModelPath(dir, false))
}

func TestResolveModelPath_EmptyModelType(t *testing.T) {
	assert.Equal(t, filepath.Join("/m", "file.onnx"), ResolveModelPath("/m", "", VariantMobile, "file.onnx"))
}

func TestGetDictionaryPath_Custom(t *testing.T) {
	dir := t.TempDir()
	custom := filepath.Join(dir, TypeDictionaries, "labels.txt")
	touch(t, custom)
	assert.Equal(t, custom, GetDictionaryPath(dir, "labels.txt"))
}

func TestValidateModelExists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "model.onnx")

	err := ValidateModelExists(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model file not found")

	touch(t, path)
	assert.NoError(t, ValidateModelExists(path))
}
