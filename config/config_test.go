package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("ATTENDANCE_CONFIG_PATH", "")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "18:00", cfg.Attendance.Boundary)
	assert.Equal(t, 12.0, cfg.Attendance.MaxHours)
	assert.Equal(t, 30*time.Minute, cfg.Attendance.SweepInterval)
	assert.Equal(t, "local", cfg.Realtime.Backplane)
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`
attendance:
  boundary: "17:30"
  max_hours: 10
  shift_mode: accumulate
realtime:
  backplane: redis
`)
	require.NoError(t, os.WriteFile(path, data, 0o600))
	t.Setenv("ATTENDANCE_CONFIG_PATH", path)
	t.Setenv("ATTENDANCE_MAX_HOURS", "9.5")
	t.Setenv("ATTENDANCE_SWEEP_CUTOFF", "8h")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "17:30", cfg.Attendance.Boundary)
	assert.Equal(t, 9.5, cfg.Attendance.MaxHours)
	assert.Equal(t, 8*time.Hour, cfg.Attendance.SweepCutoff)
	assert.Equal(t, "accumulate", cfg.Attendance.ShiftMode)
	assert.Equal(t, "redis", cfg.Realtime.Backplane)

	h, m, err := cfg.Attendance.BoundaryClock()
	require.NoError(t, err)
	assert.Equal(t, 17, h)
	assert.Equal(t, 30, m)
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad boundary", func(c *Config) { c.Attendance.Boundary = "6pm" }},
		{"zero cap", func(c *Config) { c.Attendance.MaxHours = 0 }},
		{"bad timezone", func(c *Config) { c.Attendance.Timezone = "Mars/Olympus" }},
		{"bad shift mode", func(c *Config) { c.Attendance.ShiftMode = "sum" }},
		{"bad backplane", func(c *Config) { c.Realtime.Backplane = "kafka" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			require.Error(t, cfg.Validate())
		})
	}
}

type fakeSSM struct {
	value string
	err   error
	name  string
}

func (f *fakeSSM) GetParameter(_ context.Context, in *ssm.GetParameterInput, _ ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	f.name = aws.ToString(in.Name)
	if f.err != nil {
		return nil, f.err
	}
	return &ssm.GetParameterOutput{Parameter: &types.Parameter{Value: aws.String(f.value)}}, nil
}

func TestResolveDSN(t *testing.T) {
	ctx := context.Background()

	db := DatabaseConfig{DSN: "original"}
	require.NoError(t, ResolveDSN(ctx, &db, &fakeSSM{value: "ignored"}))
	assert.Equal(t, "original", db.DSN)

	client := &fakeSSM{value: "user:pw@tcp(db:3306)/workday"}
	db = DatabaseConfig{DSN: "original", DSNParameter: "/workday/dsn"}
	require.NoError(t, ResolveDSN(ctx, &db, client))
	assert.Equal(t, "/workday/dsn", client.name)
	assert.Equal(t, "user:pw@tcp(db:3306)/workday", db.DSN)

	db = DatabaseConfig{DSNParameter: "/workday/dsn"}
	require.Error(t, ResolveDSN(ctx, &db, &fakeSSM{err: errors.New("denied")}))
}
