package registry

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
}

func TestScanFiltersWeights(t *testing.T) {
	dir := t.TempDir()
	for _, f := range []string{"lama.pt", "mat.PTH", "notes.txt", "sd15.safetensors", "model.bin"} {
		writeFile(t, dir, f, "")
	}
	if err := os.Mkdir(filepath.Join(dir, "sub.pt"), 0o755); err != nil {
		t.Fatal(err)
	}
	models, err := NewScanner().Scan(dir)
	if err != nil {
		t.Fatalf("scan error: %v", err)
	}
	if len(models) != 3 {
		t.Fatalf("expected 3 models, got %+v", models)
	}
	if models[0].Name != "lama" || models[1].Name != "mat" || models[2].Name != "sd15" {
		t.Fatalf("unexpected order/names: %+v", models)
	}
	for _, m := range models {
		if m.Kind != KindRunner || !filepath.IsAbs(m.Path) {
			t.Fatalf("unexpected descriptor: %+v", m)
		}
	}
}

func TestScanReadsSidecar(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "sd15.safetensors", "")
	writeFile(t, dir, "sd15.yaml", "model_type: diffusers_sd\nneed_prompt: true\nsupport_strength: true\nsupport_controlnet: true\ncontrolnets: [control_v11p_sd15_canny]\n")
	models, err := LoadDir(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	m := models[0]
	if m.ModelType != "diffusers_sd" || !m.NeedPrompt || !m.SupportControlnet || len(m.Controlnets) != 1 {
		t.Fatalf("sidecar not applied: %+v", m)
	}
}

func TestScanBadSidecar(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "x.pt", "")
	writeFile(t, dir, "x.yaml", "need_prompt: [")
	if _, err := LoadDir(dir); err == nil {
		t.Fatalf("expected sidecar parse error")
	}
}

func TestScanMissingDir(t *testing.T) {
	if _, err := LoadDir(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Fatalf("expected error for missing dir")
	}
}
