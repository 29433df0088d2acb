package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_ValidConfig(t *testing.T) {
	cfg := &Config{
		App: AppConfig{
			Environment: "development",
		},
		Logger: LoggerConfig{
			Level: "info",
		},
		Data: DataConfig{
			BasePath: "/some/path",
		},
	}

	err := cfg.Validate()
	assert.NoError(t, err)
}

func TestValidate_AllEnvironments(t *testing.T) {
	tests := []struct {
		env   string
		valid bool
	}{
		{"development", true},
		{"staging", true},
		{"production", true},
		{"test", false},
		{"", false},
		{"DEVELOPMENT", false}, // case sensitive
	}

	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			cfg := &Config{
				App:    AppConfig{Environment: tt.env},
				Logger: LoggerConfig{Level: "info"},
				Data:   DataConfig{BasePath: "/some/path"},
			}

			err := cfg.Validate()
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestValidate_AllLogLevels(t *testing.T) {
	tests := []struct {
		level string
		valid bool
	}{
		{"debug", true},
		{"info", true},
		{"warn", true},
		{"error", true},
		{"DEBUG", true},  // case insensitive
		{"trace", false}, // not supported
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			cfg := &Config{
				App:    AppConfig{Environment: "development"},
				Logger: LoggerConfig{Level: tt.level},
				Data:   DataConfig{BasePath: "/some/path"},
			}

			err := cfg.Validate()
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestValidate_EmptyDataPath(t *testing.T) {
	cfg := &Config{
		App:    AppConfig{Environment: "development"},
		Logger: LoggerConfig{Level: "info"},
		Data:   DataConfig{BasePath: ""},
	}

	err := cfg.Validate()
	assert.Error(t, err)
}

func TestExpandDataPath_EmptyUsesDefault(t *testing.T) {
	cfg := &Config{Data: DataConfig{BasePath: ""}}

	err := cfg.expandDataPath()
	require.NoError(t, err)

	homeDir, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(homeDir, "DeviceDock", "data"), cfg.Data.BasePath)
}

func TestExpandDataPath_TildeExpansion(t *testing.T) {
	cfg := &Config{Data: DataConfig{BasePath: "~/custom/data"}}

	err := cfg.expandDataPath()
	require.NoError(t, err)

	homeDir, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(homeDir, "custom", "data"), cfg.Data.BasePath)
}

func TestExpandDataPath_AbsolutePath(t *testing.T) {
	cfg := &Config{Data: DataConfig{BasePath: "/var/lib/devicedock"}}

	err := cfg.expandDataPath()
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/devicedock", cfg.Data.BasePath)
}

func TestGetConfigValue_Precedence(t *testing.T) {
	const envKey = "DEVICEDOCK_TEST_CONFIG_VALUE"
	t.Setenv(envKey, "from-env")

	// Flag wins over env.
	assert.Equal(t, "from-flag", getConfigValue("from-flag", envKey, "default"))

	// Env wins over default.
	assert.Equal(t, "from-env", getConfigValue("", envKey, "default"))

	// Default when nothing else set.
	os.Unsetenv(envKey)
	assert.Equal(t, "default", getConfigValue("", envKey, "default"))
}

func TestLoadEnvFile_ValidFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")

	content := "# comment line\nDEVICEDOCK_TEST_A=alpha\nDEVICEDOCK_TEST_B=\"quoted\"\n\nDEVICEDOCK_TEST_C = spaced \n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	t.Cleanup(func() {
		os.Unsetenv("DEVICEDOCK_TEST_A")
		os.Unsetenv("DEVICEDOCK_TEST_B")
		os.Unsetenv("DEVICEDOCK_TEST_C")
	})

	err := loadEnvFile(path)
	require.NoError(t, err)

	assert.Equal(t, "alpha", os.Getenv("DEVICEDOCK_TEST_A"))
	assert.Equal(t, "quoted", os.Getenv("DEVICEDOCK_TEST_B"))
	assert.Equal(t, "spaced", os.Getenv("DEVICEDOCK_TEST_C"))
}

func TestLoadEnvFile_NonExistentFile(t *testing.T) {
	err := loadEnvFile("/nonexistent/.env")
	assert.Error(t, err)
}

func TestLoadEnvFile_ExistingEnvVarsNotOverwritten(t *testing.T) {
	const envKey = "DEVICEDOCK_TEST_EXISTING"
	t.Setenv(envKey, "original")

	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte(envKey+"=overwritten\n"), 0o600))

	err := loadEnvFile(path)
	require.NoError(t, err)
	assert.Equal(t, "original", os.Getenv(envKey))
}
