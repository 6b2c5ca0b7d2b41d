package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"inpaintd/internal/common/fsutil"
	"inpaintd/pkg/types"
)

// KindRunner marks descriptors served by the external runner.
const KindRunner = "runner"

// DefaultExtensions are the weight file suffixes treated as models.
var DefaultExtensions = []string{".pt", ".pth", ".ckpt", ".safetensors", ".onnx"}

// Sidecar is the optional <stem>.yaml next to a weights file describing what
// the model supports.
type Sidecar struct {
	ModelType         string   `yaml:"model_type"`
	NeedPrompt        bool     `yaml:"need_prompt"`
	SupportStrength   bool     `yaml:"support_strength"`
	SupportControlnet bool     `yaml:"support_controlnet"`
	Controlnets       []string `yaml:"controlnets"`
}

// Scanner discovers model weight files in a directory.
type Scanner struct {
	Extensions []string
}

// NewScanner returns a Scanner for DefaultExtensions.
func NewScanner() *Scanner { return &Scanner{Extensions: DefaultExtensions} }

// Scan lists weight files in dir. The model name is the file name without its
// extension; Path is absolute. Results are sorted by name.
func (s *Scanner) Scan(dir string) ([]types.ModelDescriptor, error) {
	base, err := fsutil.ExpandHome(dir)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("abs path: %w", err)
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}
	var models []types.ModelDescriptor
	for _, e := range entries {
		if e.IsDir() || !s.matches(e.Name()) {
			continue
		}
		name := e.Name()
		stem := strings.TrimSuffix(name, filepath.Ext(name))
		d := types.ModelDescriptor{
			Name:      stem,
			Path:      filepath.Join(abs, name),
			Kind:      KindRunner,
			ModelType: "inpaint",
		}
		sc, err := readSidecar(filepath.Join(abs, stem+".yaml"))
		if err != nil {
			return nil, err
		}
		if sc != nil {
			if sc.ModelType != "" {
				d.ModelType = sc.ModelType
			}
			d.NeedPrompt = sc.NeedPrompt
			d.SupportStrength = sc.SupportStrength
			d.SupportControlnet = sc.SupportControlnet
			d.Controlnets = sc.Controlnets
		}
		models = append(models, d)
	}
	sort.Slice(models, func(i, j int) bool { return models[i].Name < models[j].Name })
	return models, nil
}

func (s *Scanner) matches(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, want := range s.Extensions {
		if ext == want {
			return true
		}
	}
	return false
}

func readSidecar(path string) (*Sidecar, error) {
	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read sidecar: %w", err)
	}
	var sc Sidecar
	if err := yaml.Unmarshal(b, &sc); err != nil {
		return nil, fmt.Errorf("parse sidecar %s: %w", filepath.Base(path), err)
	}
	return &sc, nil
}

// LoadDir scans dir with the default extensions.
func LoadDir(dir string) ([]types.ModelDescriptor, error) {
	return NewScanner().Scan(dir)
}
