package storage

import (
	"compress/gzip"
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"car-price-estimator/models"
	"car-price-estimator/preprocess"
	"car-price-estimator/regressor"
	"car-price-estimator/services"
)

// ErrArtifactKind is returned when a file holds a different artifact than
// the one requested.
var ErrArtifactKind = errors.New("artifact: unexpected artifact kind")

const (
	artifactVersion  = 1
	kindPreprocessor = "preprocessor"
	kindModel        = "model"
)

type artifactHeader struct {
	Kind    string
	Version int
}

// PreprocessorArtifact is everything serving needs to turn a request into a
// model row exactly as training did.
type PreprocessorArtifact struct {
	Transform *preprocess.ColumnTransform
	Features  services.FeatureConfig
	Stats     models.FittedStats
}

// SavePreprocessor writes a fitted preprocessor artifact to path.
func SavePreprocessor(path string, a *PreprocessorArtifact) error {
	if a.Transform == nil || !a.Transform.Fitted() {
		return fmt.Errorf("artifact: save %s: %w", path, preprocess.ErrNotFitted)
	}
	return saveArtifact(path, kindPreprocessor, a)
}

// LoadPreprocessor reads a preprocessor artifact and checks it is fitted.
func LoadPreprocessor(path string) (*PreprocessorArtifact, error) {
	var a PreprocessorArtifact
	if err := loadArtifact(path, kindPreprocessor, &a); err != nil {
		return nil, err
	}
	if a.Transform == nil || !a.Transform.Fitted() {
		return nil, fmt.Errorf("artifact: load %s: %w", path, preprocess.ErrNotFitted)
	}
	return &a, nil
}

// SaveModel writes a fitted forest to path.
func SaveModel(path string, m *regressor.RandomForest) error {
	if !m.Fitted() {
		return fmt.Errorf("artifact: save %s: %w", path, regressor.ErrNotFitted)
	}
	return saveArtifact(path, kindModel, m)
}

// LoadModel reads a forest written by SaveModel.
func LoadModel(path string) (*regressor.RandomForest, error) {
	var m regressor.RandomForest
	if err := loadArtifact(path, kindModel, &m); err != nil {
		return nil, err
	}
	if !m.Fitted() {
		return nil, fmt.Errorf("artifact: load %s: %w", path, regressor.ErrNotFitted)
	}
	return &m, nil
}

// saveArtifact writes a gzip-compressed gob stream (header, then payload)
// to a temporary file and renames it over path.
func saveArtifact(path, kind string, payload any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("artifact: create dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("artifact: create temp file: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck

	if err := encodeArtifact(tmp, kind, payload); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("artifact: encode %s: %w", kind, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("artifact: close %s: %w", kind, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("artifact: rename: %w", err)
	}
	return nil
}

func encodeArtifact(w io.Writer, kind string, payload any) error {
	zw := gzip.NewWriter(w)
	enc := gob.NewEncoder(zw)
	if err := enc.Encode(artifactHeader{Kind: kind, Version: artifactVersion}); err != nil {
		return err
	}
	if err := enc.Encode(payload); err != nil {
		return err
	}
	return zw.Close()
}

func loadArtifact(path, kind string, payload any) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("artifact: open %s: %w", path, err)
	}
	defer f.Close()

	zr, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("artifact: %s: %w", path, err)
	}
	defer zr.Close()

	dec := gob.NewDecoder(zr)
	var h artifactHeader
	if err := dec.Decode(&h); err != nil {
		return fmt.Errorf("artifact: %s: decode header: %w", path, err)
	}
	if h.Kind != kind {
		return fmt.Errorf("%w: %s holds %q, want %q", ErrArtifactKind, path, h.Kind, kind)
	}
	if h.Version != artifactVersion {
		return fmt.Errorf("artifact: %s: unsupported version %d", path, h.Version)
	}
	if err := dec.Decode(payload); err != nil {
		return fmt.Errorf("artifact: %s: decode %s: %w", path, kind, err)
	}
	return nil
}
