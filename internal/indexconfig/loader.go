package indexconfig

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/wonny/eqindex/internal/s0_data/quality"
	"github.com/wonny/eqindex/pkg/config"
)

// Load reads a YAML definition and returns it with its raw bytes
// SSOT 핵심: KnownFields(true)로 오타/미사용 필드 즉시 실패
func Load(path string) (*Config, []byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, data, err
	}
	return cfg, data, nil
}

// Parse decodes and validates a YAML definition
func Parse(data []byte) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true) // 알 수 없는 필드 발견 시 에러 반환
	if err := dec.Decode(&cfg); err != nil {
		return nil, err
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Hash generates a SHA256 hash of the definition (canonical JSON)
// 주의: map 대신 struct 사용으로 해시 재현성 보장
func Hash(cfg *Config) (string, error) {
	jsonBytes, err := json.Marshal(cfg)
	if err != nil {
		return "", err
	}

	sum := sha256.Sum256(jsonBytes)
	return hex.EncodeToString(sum[:]), nil
}

// Apply overrides the environment defaults with the definition
func (c *Config) Apply(idx *config.IndexConfig) {
	if c.Index.TopN > 0 {
		idx.TopN = c.Index.TopN
	}
	if c.Index.LookbackDays > 0 {
		idx.LookbackDays = c.Index.LookbackDays
	}
	if c.Index.ChangeLogMode != "" {
		idx.ChangeLogMode = c.Index.ChangeLogMode
	}
}

// Default returns the definition used when no file is configured
func Default(idx config.IndexConfig) *Config {
	return &Config{
		Meta: Meta{
			IndexID:  "us_equal_weight",
			Name:     "US Equal Weight",
			Version:  "1",
			Timezone: "America/New_York",
		},
		Index: Index{
			TopN:          idx.TopN,
			LookbackDays:  idx.LookbackDays,
			ChangeLogMode: idx.ChangeLogMode,
		},
		Universe: Universe{Source: UniverseSP500},
		Schedules: Schedules{
			DailyPipeline: "0 30 17 * * 1-5",
			TickerRefresh: "0 0 6 * * 1",
			HealthCheck:   "0 */15 * * * *",
		},
		Quality: quality.DefaultConfig(),
	}
}
