package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config application configuration structure
type Config struct {
	Server ServerConfig `yaml:"server"`
	Log    LogConfig    `yaml:"log"`
	Room   RoomConfig   `yaml:"room"`
	ADB    ADBConfig    `yaml:"adb"`
}

// ServerConfig HTTP and WebSocket listener configuration
type ServerConfig struct {
	BindAddr       string   `yaml:"bind_addr"`        // Listening address (format: ip:port or :port, e.g., ":3000")
	TelemetryPath  string   `yaml:"telemetry_path"`   // Metrics path
	AllowedOrigins []string `yaml:"allowed_origins"`  // Origins allowed for WebSocket upgrades and CORS ("*" allows any)
	PingInterval   int      `yaml:"ping_interval"`    // WebSocket ping cadence in seconds
	PongTimeout    int      `yaml:"pong_timeout"`     // Seconds to wait for a pong before the connection is considered dead
	WriteTimeout   int      `yaml:"write_timeout"`    // Per-frame write timeout in seconds
	SendBufferSize int      `yaml:"send_buffer_size"` // Outbound frames queued per connection before sends are dropped
}

// LogConfig log configuration
type LogConfig struct {
	Level string `yaml:"level"`
}

// RoomConfig room store configuration
type RoomConfig struct {
	DBPath          string `yaml:"db_path"`           // SQLite database file path
	DefaultTTLHours int    `yaml:"default_ttl_hours"` // Room lifetime when the create request doesn't specify one
}

// ADBConfig device automation configuration
type ADBConfig struct {
	Path           string `yaml:"path"`            // Path to the adb executable
	TimeoutSeconds int    `yaml:"timeout_seconds"` // Command timeout in seconds
}

// LoadConfig loads configuration from file
func LoadConfig(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = "config.yaml"
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", configPath)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %v", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %v", err)
	}

	config.SetDefaults()
	config.ApplyEnvOverrides()

	return &config, nil
}

// SetDefaults sets default values
func (c *Config) SetDefaults() {
	if c.Server.BindAddr == "" {
		c.Server.BindAddr = ":3000"
	}
	if c.Server.TelemetryPath == "" {
		c.Server.TelemetryPath = "/metrics"
	}
	if len(c.Server.AllowedOrigins) == 0 {
		c.Server.AllowedOrigins = []string{"*"}
	}
	if c.Server.PingInterval == 0 {
		c.Server.PingInterval = 20
	}
	if c.Server.PongTimeout == 0 {
		c.Server.PongTimeout = 20
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 10
	}
	if c.Server.SendBufferSize == 0 {
		c.Server.SendBufferSize = 256
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}

	if c.Room.DBPath == "" {
		c.Room.DBPath = "rooms.db"
	}
	if c.Room.DefaultTTLHours == 0 {
		c.Room.DefaultTTLHours = 24
	}

	if c.ADB.Path == "" {
		c.ADB.Path = "adb"
	}
	if c.ADB.TimeoutSeconds == 0 {
		c.ADB.TimeoutSeconds = 30
	}
}

// GetPingInterval gets the WebSocket ping cadence
func (c *Config) GetPingInterval() time.Duration {
	return time.Duration(c.Server.PingInterval) * time.Second
}

// GetPongTimeout gets the pong wait timeout
func (c *Config) GetPongTimeout() time.Duration {
	return time.Duration(c.Server.PongTimeout) * time.Second
}

// GetWriteTimeout gets the per-frame write timeout
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.Server.WriteTimeout) * time.Second
}

// GetRoomDefaultTTL gets the default room lifetime
func (c *Config) GetRoomDefaultTTL() time.Duration {
	return time.Duration(c.Room.DefaultTTLHours) * time.Hour
}

// GetADBTimeout gets the adb command timeout
func (c *Config) GetADBTimeout() time.Duration {
	return time.Duration(c.ADB.TimeoutSeconds) * time.Second
}

// ApplyEnvOverrides applies environment variable overrides
func (c *Config) ApplyEnvOverrides() {
	if val := os.Getenv("SERVER_BIND_ADDR"); val != "" {
		c.Server.BindAddr = val
	}
	if val := os.Getenv("SERVER_TELEMETRY_PATH"); val != "" {
		c.Server.TelemetryPath = val
	}
	if val := os.Getenv("ALLOWED_ORIGINS"); val != "" {
		origins := strings.Split(val, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
		c.Server.AllowedOrigins = origins
	}
	if val := os.Getenv("WS_PING_INTERVAL"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			c.Server.PingInterval = i
		}
	}
	if val := os.Getenv("WS_PONG_TIMEOUT"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			c.Server.PongTimeout = i
		}
	} else if val := os.Getenv("WS_PING_TIMEOUT"); val != "" {
		// Legacy name used by earlier deployments
		if i, err := strconv.Atoi(val); err == nil {
			c.Server.PongTimeout = i
		}
	}
	if val := os.Getenv("WS_WRITE_TIMEOUT"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			c.Server.WriteTimeout = i
		}
	}
	if val := os.Getenv("WS_SEND_BUFFER_SIZE"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			c.Server.SendBufferSize = i
		}
	}

	if val := os.Getenv("LOG_LEVEL"); val != "" {
		c.Log.Level = strings.ToLower(val)
	}

	if val := os.Getenv("ROOM_DB_PATH"); val != "" {
		c.Room.DBPath = val
	}
	if val := os.Getenv("ROOM_DEFAULT_TTL_HOURS"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			c.Room.DefaultTTLHours = i
		}
	}

	if val := os.Getenv("ADB_PATH"); val != "" {
		c.ADB.Path = val
	}
	if val := os.Getenv("ADB_TIMEOUT_SECONDS"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			c.ADB.TimeoutSeconds = i
		}
	}
}
