package verify

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Round is one played round as the player recorded it: the revealed
// seeds, the game parameters and whatever outcome was shown during play.
type Round struct {
	ID             string  `json:"id,omitempty" yaml:"id"`
	Game           string  `json:"game" yaml:"game"`
	ServerSeed     string  `json:"server_seed" yaml:"server_seed"`
	ServerHash     string  `json:"server_hash,omitempty" yaml:"server_hash"`
	Stain          string  `json:"stain" yaml:"stain"`
	Convention     string  `json:"convention,omitempty" yaml:"convention"`
	Difficulty     float64 `json:"difficulty,omitempty" yaml:"difficulty"`
	DifficultyName string  `json:"difficulty_name,omitempty" yaml:"difficulty_name"`
	Squares        int     `json:"squares,omitempty" yaml:"squares"`
	Uncovered      *int    `json:"uncovered,omitempty" yaml:"uncovered"`
	Claim          Claim   `json:"claim" yaml:"claim"`
}

// Claim holds the outcome presented during play. Only fields that are set
// are compared.
type Claim struct {
	Side     string   `json:"side,omitempty" yaml:"side"`
	Digest   string   `json:"digest,omitempty" yaml:"digest"`
	FailedAt *int     `json:"failed_at,omitempty" yaml:"failed_at"`
	Tiles    []bool   `json:"tiles,omitempty" yaml:"tiles"`
	Player   []string `json:"player,omitempty" yaml:"player"`
	Dealer   []string `json:"dealer,omitempty" yaml:"dealer"`
	Deck     []string `json:"deck,omitempty" yaml:"deck"`
}

// LoadRounds reads a list of rounds from a .json, .yaml or .yml file.
func LoadRounds(path string) ([]Round, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rounds file: %w", err)
	}
	return ParseRounds(data, filepath.Ext(path))
}

// ParseRounds decodes rounds encoded as JSON or YAML, chosen by ext.
func ParseRounds(data []byte, ext string) ([]Round, error) {
	var rounds []Round
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &rounds); err != nil {
			return nil, fmt.Errorf("decode yaml rounds: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &rounds); err != nil {
			return nil, fmt.Errorf("decode json rounds: %w", err)
		}
	}
	return rounds, nil
}
