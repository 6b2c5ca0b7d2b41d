package schema

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"net/url"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/go-playground/form/v4"
	"github.com/go-playground/validator/v10"

	"inpaintd/internal/imgproc"
)

const (
	// SeedRandom asks the server to pick a seed.
	SeedRandom = -1
	// SeedMax is the largest seed the server picks.
	SeedMax = 99_999_999

	// PaintByExampleField is the upload holding the conditioning image.
	PaintByExampleField = "paintByExampleImage"
)

// Builder parses request fields into a Config. It is safe for concurrent use.
type Builder struct {
	// Strict rejects requests that omit any field; otherwise omitted fields
	// keep their DefaultConfig value.
	Strict bool
	// Seed returns a seed in [1, SeedMax]; nil uses math/rand.
	Seed func() int

	decoder  *form.Decoder
	validate *validator.Validate
	names    []string
}

// NewBuilder constructs a Builder.
func NewBuilder(strict bool) *Builder {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		if name := f.Tag.Get("form"); name != "" {
			return name
		}
		return f.Tag.Get("json")
	})
	d := form.NewDecoder()
	d.RegisterCustomTypeFunc(decodeInt, int(0))
	d.RegisterCustomTypeFunc(decodeFreeU, FreeUConfig{})
	return &Builder{Strict: strict, decoder: d, validate: v, names: formFields()}
}

// formFields lists the request field names Config is decoded from.
func formFields() []string {
	rt := reflect.TypeOf(Config{})
	var names []string
	for i := 0; i < rt.NumField(); i++ {
		if name := rt.Field(i).Tag.Get("form"); name != "" && name != "-" {
			names = append(names, name)
		}
	}
	return names
}

// Build parses fields into a Config and decodes the optional conditioning
// image from files. A seed of SeedRandom is replaced after parsing and
// validation.
func (b *Builder) Build(fields map[string]string, files map[string][]byte) (*Config, error) {
	if b.Strict {
		for _, name := range b.names {
			if _, ok := fields[name]; !ok {
				return nil, &ValidationError{Field: name, Reason: "required"}
			}
		}
	}
	values := make(url.Values, len(fields))
	for k, v := range fields {
		values.Set(k, strings.TrimSpace(v))
	}
	cfg := DefaultConfig()
	if err := b.decoder.Decode(&cfg, values); err != nil {
		return nil, fromDecoder(err)
	}

	if data, ok := files[PaintByExampleField]; ok && len(data) > 0 {
		d, err := imgproc.Decode(data)
		if err != nil {
			return nil, &ValidationError{Field: PaintByExampleField, Reason: err.Error()}
		}
		cfg.PaintByExampleImage = d.RGB
	}

	if err := b.validate.Struct(&cfg); err != nil {
		return nil, fromValidator(err)
	}

	if cfg.SDSeed == SeedRandom {
		cfg.SDSeed = b.randomSeed()
	}
	return &cfg, nil
}

func (b *Builder) randomSeed() int {
	if b.Seed != nil {
		return b.Seed()
	}
	return rand.IntN(SeedMax) + 1
}

// decodeInt accepts integral values sent as "12.0", which browsers
// occasionally produce.
func decodeInt(vals []string) (interface{}, error) {
	raw := vals[0]
	if v, err := strconv.Atoi(raw); err == nil {
		return v, nil
	}
	fv, err := strconv.ParseFloat(raw, 64)
	if err != nil || fv != float64(int(fv)) {
		return nil, fmt.Errorf("not an integer: %q", raw)
	}
	return int(fv), nil
}

func decodeFreeU(vals []string) (interface{}, error) {
	var fc FreeUConfig
	dec := json.NewDecoder(strings.NewReader(vals[0]))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&fc); err != nil {
		return nil, fmt.Errorf("not a valid JSON object: %v", err)
	}
	return fc, nil
}

// fromDecoder reports the first failing field in name order so the result is
// stable across calls.
func fromDecoder(err error) error {
	errs, ok := err.(form.DecodeErrors)
	if !ok || len(errs) == 0 {
		return &ValidationError{Field: "", Reason: err.Error()}
	}
	names := make([]string, 0, len(errs))
	for name := range errs {
		names = append(names, name)
	}
	sort.Strings(names)
	return &ValidationError{Field: names[0], Reason: errs[names[0]].Error()}
}

func fromValidator(err error) error {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok || len(verrs) == 0 {
		return &ValidationError{Field: "", Reason: err.Error()}
	}
	fe := verrs[0]
	field := fe.Field()
	// Nested fields are reported under their top-level request field.
	if parts := strings.Split(fe.Namespace(), "."); len(parts) > 2 {
		field = parts[1]
	}
	reason := fe.Tag()
	if p := fe.Param(); p != "" {
		reason += "=" + p
	}
	return &ValidationError{Field: field, Reason: fmt.Sprintf("must satisfy %s, got %v", reason, fe.Value())}
}
