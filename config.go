package assetorigin

import (
	"os"

	"gopkg.in/yaml.v3"
)

// FileConfig is the on-disk configuration for the asset-origin binary.
type FileConfig struct {
	Listen                   string      `yaml:"listen"`
	DBFile                   string      `yaml:"dbFile"`
	BlobDir                  string      `yaml:"blobDir"`
	PublicBaseURL            string      `yaml:"publicBaseURL"`
	DefaultTokenTTLSeconds   int         `yaml:"defaultTokenTTLSeconds"`
	MaxUploadBytes           int64       `yaml:"maxUploadBytes"`
	AllowReplaceAfterPublish bool        `yaml:"allowReplaceAfterPublish"`
	Purge                    PurgeConfig `yaml:"purge"`
}

// PurgeConfig configures CDN purge signaling.
type PurgeConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"`
	APIToken string `yaml:"apiToken"`
}

// LoadConfig reads a yaml configuration file.
func LoadConfig(filename string) (FileConfig, error) {
	var config FileConfig
	configBytes, err := os.ReadFile(filename)
	if err != nil {
		return config, err
	}
	err = yaml.Unmarshal(configBytes, &config)
	return config, err
}
