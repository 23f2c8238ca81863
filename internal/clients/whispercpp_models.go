package clients

import (
	"os"
	"path/filepath"
	"strings"
)

// WhisperModel is one built-in whisper.cpp model preset.
type WhisperModel struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	FileName   string `json:"fileName"`
	URL        string `json:"url"`
	SizeLabel  string `json:"sizeLabel"`
	Downloaded bool   `json:"downloaded"`
	LocalPath  string `json:"localPath,omitempty"`
}

// GGMLBaseURL is where the catalog model files are published.
const GGMLBaseURL = "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/"

var whisperModelCatalog = []WhisperModel{
	{ID: "tiny.en", Name: "Tiny (English)", FileName: "ggml-tiny.en.bin", SizeLabel: "~75 MB"},
	{ID: "tiny", Name: "Tiny (Multilingual)", FileName: "ggml-tiny.bin", SizeLabel: "~75 MB"},
	{ID: "base.en", Name: "Base (English)", FileName: "ggml-base.en.bin", SizeLabel: "~142 MB"},
	{ID: "base", Name: "Base (Multilingual)", FileName: "ggml-base.bin", SizeLabel: "~142 MB"},
	{ID: "small.en", Name: "Small (English)", FileName: "ggml-small.en.bin", SizeLabel: "~466 MB"},
	{ID: "small", Name: "Small (Multilingual)", FileName: "ggml-small.bin", SizeLabel: "~466 MB"},
	{ID: "medium.en", Name: "Medium (English)", FileName: "ggml-medium.en.bin", SizeLabel: "~1.5 GB"},
	{ID: "medium", Name: "Medium (Multilingual)", FileName: "ggml-medium.bin", SizeLabel: "~1.5 GB"},
	{ID: "large-v2", Name: "Large v2", FileName: "ggml-large-v2.bin", SizeLabel: "~2.9 GB"},
	{ID: "large-v3", Name: "Large v3", FileName: "ggml-large-v3.bin", SizeLabel: "~2.9 GB"},
	{ID: "large-v3-turbo", Name: "Large v3 Turbo", FileName: "ggml-large-v3-turbo.bin", SizeLabel: "~1.6 GB"},
}

// WhisperModels returns the catalog with Downloaded set for files present in modelDir.
func WhisperModels(modelDir string) []WhisperModel {
	models := make([]WhisperModel, len(whisperModelCatalog))
	copy(models, whisperModelCatalog)

	for i := range models {
		models[i].URL = GGMLBaseURL + models[i].FileName
		if modelDir == "" {
			continue
		}
		candidate := filepath.Join(modelDir, models[i].FileName)
		info, err := os.Stat(candidate)
		if err != nil || info.IsDir() {
			continue
		}
		models[i].Downloaded = true
		models[i].LocalPath = candidate
	}
	return models
}

// WhisperModelFile maps a model id such as "base" to its ggml file name.
// Names that already look like model files are returned unchanged.
func WhisperModelFile(model string) (string, bool) {
	name := strings.TrimSpace(model)
	ext := strings.ToLower(filepath.Ext(name))
	if ext == ".bin" || ext == ".gguf" {
		return name, true
	}
	for _, m := range whisperModelCatalog {
		if m.ID == name {
			return m.FileName, true
		}
	}
	return "", false
}

// LookupWhisperModel returns the catalog entry for a model id.
func LookupWhisperModel(id string) (WhisperModel, bool) {
	for _, m := range whisperModelCatalog {
		if m.ID == strings.TrimSpace(id) {
			m.URL = GGMLBaseURL + m.FileName
			return m, true
		}
	}
	return WhisperModel{}, false
}
