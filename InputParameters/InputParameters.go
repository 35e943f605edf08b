// Package InputParameters reads the YAML input file driving a simulation and
// exposes typed parameter lookup. A parameter is addressed by (section, name)
// matching the two top YAML levels; accessors either require the key, or
// install a caller-supplied default.
package InputParameters

import (
	"bytes"
	"fmt"
	"os"
	"sort"

	"github.com/ghodss/yaml"
	"github.com/spf13/viper"
)

// RefinementRegion requests static refinement of a physical sub-domain up to
// the given level (relative to the root grid).
type RefinementRegion struct {
	X1Min float64 `json:"x1min"`
	X1Max float64 `json:"x1max"`
	X2Min float64 `json:"x2min"`
	X2Max float64 `json:"x2max"`
	X3Min float64 `json:"x3min"`
	X3Max float64 `json:"x3max"`
	Level int     `json:"level"`
}

// ParameterInput holds the parsed input file.
type ParameterInput struct {
	v       *viper.Viper
	raw     []byte
	Regions []RefinementRegion
}

// NewParameterInput parses an input file from memory.
func NewParameterInput(data []byte) (ip *ParameterInput, err error) {
	v := viper.New()
	v.SetConfigType("yaml")
	if err = v.ReadConfig(bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("unable to parse input parameters: %w", err)
	}
	ip = &ParameterInput{v: v, raw: data}
	// The refinement region list does not fit the flat section/name scheme,
	// so it is decoded separately.
	var regions struct {
		Refinement []RefinementRegion `json:"refinement"`
	}
	if err = yaml.Unmarshal(data, &regions); err != nil {
		return nil, fmt.Errorf("unable to parse refinement regions: %w", err)
	}
	ip.Regions = regions.Refinement
	return ip, nil
}

// ReadParameterFile loads and parses the input file at path.
func ReadParameterFile(path string) (ip *ParameterInput, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read input file %s: %w", path, err)
	}
	if ip, err = NewParameterInput(data); err != nil {
		return nil, fmt.Errorf("input file %s: %w", path, err)
	}
	return ip, nil
}

func key(section, name string) string { return section + "." + name }

func (ip *ParameterInput) has(section, name string) bool {
	return ip.v.IsSet(key(section, name))
}

// GetReal returns a required floating point parameter.
func (ip *ParameterInput) GetReal(section, name string) (float64, error) {
	if !ip.has(section, name) {
		return 0, fmt.Errorf("required parameter %s/%s not found in input file",
			section, name)
	}
	return ip.v.GetFloat64(key(section, name)), nil
}

// GetInteger returns a required integer parameter.
func (ip *ParameterInput) GetInteger(section, name string) (int, error) {
	if !ip.has(section, name) {
		return 0, fmt.Errorf("required parameter %s/%s not found in input file",
			section, name)
	}
	return ip.v.GetInt(key(section, name)), nil
}

// GetString returns a required string parameter.
func (ip *ParameterInput) GetString(section, name string) (string, error) {
	if !ip.has(section, name) {
		return "", fmt.Errorf("required parameter %s/%s not found in input file",
			section, name)
	}
	return ip.v.GetString(key(section, name)), nil
}

// GetOrAddReal returns the parameter if present, otherwise installs and
// returns the default.
func (ip *ParameterInput) GetOrAddReal(section, name string, def float64) float64 {
	if !ip.has(section, name) {
		ip.v.SetDefault(key(section, name), def)
	}
	return ip.v.GetFloat64(key(section, name))
}

func (ip *ParameterInput) GetOrAddInteger(section, name string, def int) int {
	if !ip.has(section, name) {
		ip.v.SetDefault(key(section, name), def)
	}
	return ip.v.GetInt(key(section, name))
}

func (ip *ParameterInput) GetOrAddString(section, name, def string) string {
	if !ip.has(section, name) {
		ip.v.SetDefault(key(section, name), def)
	}
	return ip.v.GetString(key(section, name))
}

// Print echoes the effective parameter set, section by section.
func (ip *ParameterInput) Print() {
	settings := ip.v.AllSettings()
	sections := make([]string, 0, len(settings))
	for s := range settings {
		sections = append(sections, s)
	}
	sort.Strings(sections)
	for _, s := range sections {
		out, err := yaml.Marshal(map[string]interface{}{s: settings[s]})
		if err != nil {
			fmt.Printf("%s: %v\n", s, settings[s])
			continue
		}
		fmt.Print(string(out))
	}
}
