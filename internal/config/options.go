package config

import (
	"bytes"
	"io"
	"os"

	"peerscan/domain/anomaly"
	"peerscan/internal/errors"

	"gopkg.in/yaml.v3"
)

// optionsDoc mirrors anomaly.Options with pointer fields so absent keys keep
// their defaults. fixedNumber and maxReasons accept numbers or strings.
type optionsDoc struct {
	PercentageValue        *float64    `yaml:"percentageValue"`
	FixedNumber            interface{} `yaml:"fixedNumber"`
	IdentificationCriteria *string     `yaml:"identificationCriteria"`
	UseMinimumValue        *bool       `yaml:"useMinimumValue"`
	CutoffValue            *float64    `yaml:"cutoffValue"`
	MinPeerGroups          *int        `yaml:"minPeerGroups"`
	MaxPeerGroups          *int        `yaml:"maxPeerGroups"`
	MissingValuesOption    *string     `yaml:"missingValuesOption"`
	MaxReasons             interface{} `yaml:"maxReasons"`
}

// LoadOptionsFile reads an option preset from a YAML file.
func LoadOptionsFile(path string) (anomaly.Options, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return anomaly.Options{}, errors.Wrapf(errors.ConfigInvalid(err.Error()), "read options preset %s", path)
	}
	opts, err := ParseOptions(b)
	if err != nil {
		return anomaly.Options{}, errors.Wrapf(err, "options preset %s", path)
	}
	return opts, nil
}

// ParseOptions decodes a YAML option preset over DefaultOptions and validates it.
// An empty document yields the defaults.
func ParseOptions(b []byte) (anomaly.Options, error) {
	opts := anomaly.DefaultOptions()

	var doc optionsDoc
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && err != io.EOF {
		return anomaly.Options{}, errors.ConfigInvalid("invalid options YAML: " + err.Error())
	}

	if doc.PercentageValue != nil {
		opts.PercentageValue = *doc.PercentageValue
	}
	if doc.FixedNumber != nil {
		opts.FixedNumber = anomaly.FlexIntFrom(doc.FixedNumber)
	}
	if doc.IdentificationCriteria != nil {
		opts.IdentificationCriteria = anomaly.IdentificationCriteria(*doc.IdentificationCriteria)
	}
	if doc.UseMinimumValue != nil {
		opts.UseMinimumValue = *doc.UseMinimumValue
	}
	if doc.CutoffValue != nil {
		opts.CutoffValue = *doc.CutoffValue
	}
	if doc.MinPeerGroups != nil {
		opts.MinPeerGroups = *doc.MinPeerGroups
	}
	if doc.MaxPeerGroups != nil {
		opts.MaxPeerGroups = *doc.MaxPeerGroups
	}
	if doc.MissingValuesOption != nil {
		opts.MissingValuesOption = anomaly.MissingValuesOption(*doc.MissingValuesOption)
	}
	if doc.MaxReasons != nil {
		opts.MaxReasons = anomaly.FlexIntFrom(doc.MaxReasons)
	}

	if err := opts.Validate(); err != nil {
		return anomaly.Options{}, errors.Wrap(err, "invalid options")
	}
	return opts, nil
}
