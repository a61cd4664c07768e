package model

import (
	"encoding/json"
	"fmt"
	"os"
)

// PoolSpec is the JSON definition of a weighted pool as supplied by the
// data-loading side: index-aligned balances and weights plus optional fees.
type PoolSpec struct {
	Name       string    `json:"name,omitempty"`
	Balances   []float64 `json:"balances"`
	Weights    []float64 `json:"weights"`
	Fee        *float64  `json:"fee,omitempty"`
	FactoryFee *float64  `json:"factory_fee,omitempty"`
}

// FeeOr returns the configured fee or the given default.
func (s PoolSpec) FeeOr(def float64) float64 {
	if s.Fee == nil {
		return def
	}
	return *s.Fee
}

// FactoryFeeOr returns the configured factory fee or the given default.
func (s PoolSpec) FactoryFeeOr(def float64) float64 {
	if s.FactoryFee == nil {
		return def
	}
	return *s.FactoryFee
}

// LoadPoolSpec reads a PoolSpec from a JSON file.
func LoadPoolSpec(path string) (PoolSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return PoolSpec{}, fmt.Errorf("read pool spec: %w", err)
	}
	var spec PoolSpec
	if err := json.Unmarshal(data, &spec); err != nil {
		return PoolSpec{}, fmt.Errorf("parse pool spec: %w", err)
	}
	return spec, nil
}
