package core

import (
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should be valid: %v", err)
	}
	if cfg.Port != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.Port)
	}
	if cfg.Run.MaxToolLoopIterations != 10 {
		t.Errorf("expected default tool loop ceiling of 10, got %d", cfg.Run.MaxToolLoopIterations)
	}
}

func TestNewConfigAppliesOptionsOverEnv(t *testing.T) {
	t.Setenv("GATEWAY_PORT", "9090")

	cfg, err := NewConfig(WithPort(9191))
	if err != nil {
		t.Fatalf("NewConfig failed: %v", err)
	}
	if cfg.Port != 9191 {
		t.Errorf("explicit option should win over env var, got port %d", cfg.Port)
	}
}

func TestNewConfigRejectsInvalidPort(t *testing.T) {
	_, err := NewConfig(WithPort(0))
	if err == nil {
		t.Fatal("expected validation error for port 0")
	}
}

func TestWithProviderCredentials(t *testing.T) {
	cfg, err := NewConfig(WithProviderCredentials("openai", "sk-test", "https://api.openai.com/v1"))
	if err != nil {
		t.Fatalf("NewConfig failed: %v", err)
	}
	pc, ok := cfg.Providers["openai"]
	if !ok {
		t.Fatal("expected openai provider config to be present")
	}
	if pc.APIKey != "sk-test" {
		t.Errorf("expected api key to be set, got %q", pc.APIKey)
	}
}

func TestWithProviderCredentialsRequiresName(t *testing.T) {
	_, err := NewConfig(WithProviderCredentials("", "key", ""))
	if err == nil {
		t.Fatal("expected error for empty provider name")
	}
}

func TestWithRunCeilingAndToolLoop(t *testing.T) {
	cfg, err := NewConfig(WithRunCeiling(45*time.Second), WithMaxToolLoopIterations(4))
	if err != nil {
		t.Fatalf("NewConfig failed: %v", err)
	}
	if cfg.Run.RunCeiling != 45*time.Second {
		t.Errorf("expected run ceiling override, got %v", cfg.Run.RunCeiling)
	}
	if cfg.Run.MaxToolLoopIterations != 4 {
		t.Errorf("expected tool loop override, got %d", cfg.Run.MaxToolLoopIterations)
	}
}

func TestEnvLoadsProviderCredentials(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-test")
	cfg, err := NewConfig()
	if err != nil {
		t.Fatalf("NewConfig failed: %v", err)
	}
	if cfg.Providers["anthropic"].APIKey != "sk-ant-test" {
		t.Errorf("expected anthropic api key from env, got %q", cfg.Providers["anthropic"].APIKey)
	}
}
