package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	appName        = "teleinvite"
	configFileName = "clients.json"
)

// DefaultInviteCap is the number of accepted invitations after which an
// account is retired for the run.
const DefaultInviteCap = 1000

var ErrInvalidSessionName = errors.New("invalid session name")

type Client struct {
	SessionName string `json:"session_name" yaml:"session_name"`
}

type API struct {
	APIID   int    `json:"API_ID" yaml:"api_id"`
	APIHash string `json:"API_HASH" yaml:"api_hash"`
}

type Group struct {
	GroupIDToInvite int64 `json:"group_id_to_invite" yaml:"group_id_to_invite"`
}

type Config struct {
	Clients        []Client `json:"clients" yaml:"clients"`
	API            *API     `json:"API,omitempty" yaml:"api,omitempty"`
	Group          *Group   `json:"group,omitempty" yaml:"group,omitempty"`
	Proxy          *Proxy   `json:"proxy,omitempty" yaml:"proxy,omitempty"`
	ExcludeUserIDs []int64  `json:"exclude_user_ids,omitempty" yaml:"exclude_user_ids,omitempty"`
}

// SessionNames returns the configured session names in order.
func (c *Config) SessionNames() []string {
	names := make([]string, 0, len(c.Clients))
	for _, cl := range c.Clients {
		names = append(names, cl.SessionName)
	}
	return names
}

// TargetID returns the normalized channel ID of the group members are
// invited to, or 0 when none is configured.
func (c *Config) TargetID() int64 {
	if c.Group == nil {
		return 0
	}
	return NormalizeChannelID(c.Group.GroupIDToInvite)
}

// Validate checks that the configuration is complete enough to run.
func (c *Config) Validate() error {
	if len(c.Clients) == 0 {
		return fmt.Errorf("no clients configured")
	}
	for _, cl := range c.Clients {
		if err := ValidateSessionName(cl.SessionName); err != nil {
			return err
		}
	}
	if c.API == nil || c.API.APIID == 0 || c.API.APIHash == "" {
		return fmt.Errorf("missing Telegram API credentials")
	}
	if c.TargetID() == 0 {
		return fmt.Errorf("missing target group ID")
	}
	if c.Proxy != nil && c.Proxy.Enabled {
		if err := c.Proxy.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func GetConfigDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	if runtime.GOOS == "windows" {
		return filepath.Join(homeDir, "AppData", "Local", appName)
	}
	return filepath.Join(homeDir, ".config", appName)
}

func GetConfigPath(home string) string {
	return filepath.Join(home, configFileName)
}

func GetSessionPath(home, name string) string {
	return filepath.Join(home, "sessions", name+".json")
}

func GetDatabasePath(home string) string {
	return filepath.Join(home, appName+".db")
}

func GetLogPath(home string) string {
	return filepath.Join(home, appName+".log")
}

func ValidateSessionName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: empty", ErrInvalidSessionName)
	}
	if strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return fmt.Errorf("%w: %q", ErrInvalidSessionName, name)
	}
	return nil
}

// NormalizeChannelID accepts a bare channel ID, its negation, or the
// Bot API form -100<id> and returns the bare ID.
func NormalizeChannelID(id int64) int64 {
	if id >= 0 {
		return id
	}
	s := strconv.FormatInt(-id, 10)
	if strings.HasPrefix(s, "100") && len(s) > 3 {
		if bare, err := strconv.ParseInt(s[3:], 10, 64); err == nil && bare != 0 {
			return bare
		}
	}
	return -id
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// Load reads the configuration at path. A missing or empty file yields a
// nil config and no error.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("error reading config: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	var config Config
	if isYAML(path) {
		err = yaml.Unmarshal(data, &config)
	} else {
		err = json.Unmarshal(data, &config)
	}
	if err != nil {
		return nil, fmt.Errorf("error parsing config %s: %w", path, err)
	}

	return &config, nil
}

func Save(path string, config *Config) error {
	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(config)
	} else {
		data, err = json.MarshalIndent(config, "", "    ")
	}
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	return writeAtomic(path, data, 0600)
}

func writeAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp.*")
	if err != nil {
		return fmt.Errorf("error creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("error writing config: %w", err)
	}
	if err := tmp.Chmod(perm); err != nil {
		return fmt.Errorf("error setting config permissions: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("error closing config: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("error replacing config: %w", err)
	}
	return nil
}
