/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/presenced/pkg/logger"
	"github.com/carverauto/presenced/pkg/models"
)

type testConfig struct {
	Name     string            `json:"name"`
	Count    int               `json:"count"`
	Enabled  bool              `json:"enabled"`
	Interval models.Duration   `json:"interval"`
	Nested   nestedConfig      `json:"nested"`
	Labels   map[string]string `json:"labels,omitempty"`

	validateErr error
}

type nestedConfig struct {
	Address string `json:"address"`
}

func (c *testConfig) Validate() error { return c.validateErr }

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestLoadAndValidate_FromFile(t *testing.T) {
	path := writeTempConfig(t, `{
		"name": "presenced",
		"count": 3,
		"enabled": true,
		"interval": "30s",
		"nested": {"address": "192.168.1.20"}
	}`)

	var cfg testConfig

	loader := NewConfig(logger.NewTestLogger())
	require.NoError(t, loader.LoadAndValidate(context.Background(), path, &cfg))

	assert.Equal(t, "presenced", cfg.Name)
	assert.Equal(t, 3, cfg.Count)
	assert.True(t, cfg.Enabled)
	assert.Equal(t, 30*time.Second, time.Duration(cfg.Interval))
	assert.Equal(t, "192.168.1.20", cfg.Nested.Address)
}

func TestLoadAndValidate_MissingFile(t *testing.T) {
	var cfg testConfig

	loader := NewConfig(logger.NewTestLogger())
	err := loader.LoadAndValidate(context.Background(), "/nonexistent/config.json", &cfg)
	assert.Error(t, err)
}

func TestLoadAndValidate_MalformedJSON(t *testing.T) {
	path := writeTempConfig(t, `{"name": `)

	var cfg testConfig

	loader := NewConfig(logger.NewTestLogger())
	assert.Error(t, loader.LoadAndValidate(context.Background(), path, &cfg))
}

func TestLoadAndValidate_ValidationFailurePropagates(t *testing.T) {
	path := writeTempConfig(t, `{"name": "presenced"}`)

	wantErr := errors.New("bad config")
	cfg := testConfig{validateErr: wantErr}

	loader := NewConfig(logger.NewTestLogger())
	err := loader.LoadAndValidate(context.Background(), path, &cfg)
	assert.ErrorIs(t, err, wantErr)
}

func TestLoadAndValidate_EnvSource(t *testing.T) {
	t.Setenv("CONFIG_SOURCE", "env")
	t.Setenv("PRESENCED_NAME", "from-env")
	t.Setenv("PRESENCED_COUNT", "7")
	t.Setenv("PRESENCED_ENABLED", "true")
	t.Setenv("PRESENCED_INTERVAL", "45s")
	t.Setenv("PRESENCED_NESTED_ADDRESS", "192.168.1.30")
	t.Setenv("PRESENCED_LABELS", `{"room":"kitchen"}`)

	var cfg testConfig

	loader := NewConfig(logger.NewTestLogger())
	require.NoError(t, loader.LoadAndValidate(context.Background(), "", &cfg))

	assert.Equal(t, "from-env", cfg.Name)
	assert.Equal(t, 7, cfg.Count)
	assert.True(t, cfg.Enabled)
	assert.Equal(t, 45*time.Second, time.Duration(cfg.Interval))
	assert.Equal(t, "192.168.1.30", cfg.Nested.Address)
	assert.Equal(t, map[string]string{"room": "kitchen"}, cfg.Labels)
}

func TestLoadAndValidate_EnvConfigJSONWins(t *testing.T) {
	t.Setenv("CONFIG_SOURCE", "env")
	t.Setenv("PRESENCED_CONFIG_JSON", `{"name": "from-json", "count": 1}`)
	t.Setenv("PRESENCED_NAME", "ignored")

	var cfg testConfig

	loader := NewConfig(logger.NewTestLogger())
	require.NoError(t, loader.LoadAndValidate(context.Background(), "", &cfg))

	assert.Equal(t, "from-json", cfg.Name)
	assert.Equal(t, 1, cfg.Count)
}

func TestLoadAndValidate_InvalidSource(t *testing.T) {
	t.Setenv("CONFIG_SOURCE", "consul")

	var cfg testConfig

	loader := NewConfig(logger.NewTestLogger())
	assert.Error(t, loader.LoadAndValidate(context.Background(), "", &cfg))
}

func TestEnvLoader_RejectsNonPointer(t *testing.T) {
	loader := NewEnvLoader(logger.NewTestLogger(), "PRESENCED_")

	err := loader.Load(context.Background(), "", testConfig{})
	assert.ErrorIs(t, err, ErrDstMustBeNonNilPointer)
}
