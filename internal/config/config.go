// Package config holds the marker prefixes the analyzer uses to
// recognize which IR functions and calls it is responsible for. The
// producing compiler emits these as fixed strings; this package makes
// them configurable.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config bundles every string the analyzer pattern-matches against IR
// names. Defaults match the CC0/z0 toolchain's conventions exactly.
type Config struct {
	// FunctionPrefix marks a function as an analysis target, e.g. "_c0_".
	FunctionPrefix string `yaml:"function_prefix"`

	// AssertMarkerPrefix marks a call as a contract call (requires/ensures/
	// loop_invariant/assert), e.g. "z0_".
	AssertMarkerPrefix string `yaml:"assert_marker_prefix"`

	// UserVarMarkerPrefix marks a debug-value annotation as describing a
	// user-visible source variable rather than a compiler temporary.
	UserVarMarkerPrefix string `yaml:"uservar_marker_prefix"`

	// ResultName is the synthesized debug-name used for a function's
	// return value, which is recorded even though it never begins with
	// UserVarMarkerPrefix.
	ResultName string `yaml:"result_name"`

	// DivIntrinsic and ModIntrinsic name the signed-division and
	// signed-modulo runtime intrinsics.
	DivIntrinsic string `yaml:"div_intrinsic"`
	ModIntrinsic string `yaml:"mod_intrinsic"`

	// DbgValueIntrinsic and DbgDeclareIntrinsic name the debug
	// annotation intrinsics the producing compiler preserves.
	DbgValueIntrinsic   string `yaml:"dbg_value_intrinsic"`
	DbgDeclareIntrinsic string `yaml:"dbg_declare_intrinsic"`
}

// Default returns the configuration matching the CC0/z0 toolchain's
// built-in naming conventions.
func Default() Config {
	return Config{
		FunctionPrefix:      "_c0_",
		AssertMarkerPrefix:  "z0_",
		UserVarMarkerPrefix: "_c0v_",
		ResultName:          "\\result",
		DivIntrinsic:        "c0_idiv",
		ModIntrinsic:        "c0_imod",
		DbgValueIntrinsic:   "llvm.dbg.value",
		DbgDeclareIntrinsic: "llvm.dbg.declare",
	}
}

// Load reads a .z0.yml configuration file, overlaying it on Default().
// A missing file is not an error; every other error (unreadable file,
// malformed YAML) is returned to the caller.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}
