package main

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"time"

	"github.com/gematik/zero-codesign/pkg/x509cert"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Profile describes a self-signed code signing certificate.
type Profile struct {
	BaseDir    string `yaml:"-"`
	Algorithm  string `yaml:"algorithm" validate:"required,oneof=rsa ecdsa ed25519"`
	CommonName string `yaml:"common_name" validate:"required"`
	Country    string `yaml:"country" validate:"required,len=2"`
	Email      string `yaml:"email" validate:"required,email"`
	Validity   string `yaml:"validity" validate:"required"`
	Output     Output `yaml:"output"`
}

type Output struct {
	Certificate string `yaml:"certificate" validate:"required"`
	PrivateKey  string `yaml:"private_key" validate:"required"`
	PFX         string `yaml:"pfx"`
	PFXPassword string `yaml:"pfx_password" validate:"required_with=PFX"`
}

func (p *Profile) KeyAlgorithm() (x509cert.KeyAlgorithm, error) {
	return x509cert.ParseKeyAlgorithm(p.Algorithm)
}

func (p *Profile) ValidityDuration() (time.Duration, error) {
	d, err := time.ParseDuration(p.Validity)
	if err != nil {
		return 0, fmt.Errorf("parse validity: %w", err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("validity must be positive: %s", p.Validity)
	}
	return d, nil
}

// resolve returns path relative to the profile directory unless it is absolute.
func (p *Profile) resolve(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(p.BaseDir, path)
}

func LoadProfileFile(path string) (*Profile, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	profile := new(Profile)
	profile.BaseDir = filepath.Dir(path)
	if err := decodeProfile(content, profile); err != nil {
		return nil, err
	}
	return profile, nil
}

func decodeProfile(content []byte, profile *Profile) error {
	expanded := os.ExpandEnv(string(content))

	if err := yaml.Unmarshal([]byte(expanded), profile); err != nil {
		return fmt.Errorf("decode profile: %w", err)
	}

	return validateProfile(profile)
}

func validateProfile(profile *Profile) error {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		return fld.Tag.Get("yaml")
	})

	if err := validate.Struct(profile); err != nil {
		return fmt.Errorf("validate profile: %w", err)
	}
	if _, err := profile.KeyAlgorithm(); err != nil {
		return err
	}
	if _, err := profile.ValidityDuration(); err != nil {
		return err
	}
	return nil
}
