package types

import (
	"errors"
	"testing"
	"time"
)

func TestConfigValidate(t *testing.T) {
	valid := Config{
		DataDir:        "/tmp/data",
		ConnectTimeout: time.Second,
		ExecTimeout:    time.Second,
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr error
	}{
		{
			name:    "valid config",
			mutate:  func(c *Config) {},
			wantErr: nil,
		},
		{
			name:    "empty data dir returns ErrDataDirEmpty",
			mutate:  func(c *Config) { c.DataDir = "" },
			wantErr: ErrDataDirEmpty,
		},
		{
			name:    "zero connect timeout returns ErrConnectTimeoutInvalid",
			mutate:  func(c *Config) { c.ConnectTimeout = 0 },
			wantErr: ErrConnectTimeoutInvalid,
		},
		{
			name:    "negative exec timeout returns ErrExecTimeoutInvalid",
			mutate:  func(c *Config) { c.ExecTimeout = -time.Second },
			wantErr: ErrExecTimeoutInvalid,
		},
		{
			name:    "known hosts path is optional",
			mutate:  func(c *Config) { c.KnownHostsPath = "" },
			wantErr: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("expected nil error, got %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected error %v, got %v", tt.wantErr, err)
			}
		})
	}
}
