package config

import (
	_ "embed"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"sigs.k8s.io/yaml"
)

//go:embed default/config.yaml
var defaultConfigData []byte

// ConfigurationName is the file name tinysh looks for in its config directory.
const ConfigurationName = "tinysh.yaml"

type Configuration struct {
	// Prompt is printed before every command line is read.
	Prompt string `json:"prompt" validate:"required"`

	// PathFallback is the search path used when $PATH is unset.
	PathFallback string `json:"path_fallback" validate:"required"`

	// MaxJobs is the job table capacity.
	MaxJobs int `json:"max_jobs" validate:"gte=1,lte=4096"`

	// MaxStages bounds the number of commands in one pipeline.
	MaxStages int `json:"max_stages" validate:"gte=1"`

	// MaxArgs bounds the argument count of a single pipeline stage.
	MaxArgs int `json:"max_args" validate:"gte=1"`
}

// Validate the configuration for basic semantic errors.
func (c *Configuration) Validate() error {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		return name
	})

	return validate.Struct(c)
}

// Default returns the built-in configuration.
func Default() *Configuration {
	var out Configuration
	if err := yaml.UnmarshalStrict(defaultConfigData, &out); err != nil {
		panic(err)
	}
	return &out
}
