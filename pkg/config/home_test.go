package config

import (
	"path/filepath"
	"testing"
)

func TestGetHome_EnvVar(t *testing.T) {
	ResetHome()
	t.Setenv("TODO_RUNNER_HOME", "/custom/path")

	got := GetHome()
	if got != "/custom/path" {
		t.Errorf("GetHome() = %q, want %q", got, "/custom/path")
	}
}

func TestGetHome_FallbackNotEmpty(t *testing.T) {
	ResetHome()
	t.Setenv("TODO_RUNNER_HOME", "")

	if got := GetHome(); got == "" {
		t.Error("GetHome() returned empty string")
	}
}

func TestGetHome_Cached(t *testing.T) {
	ResetHome()
	t.Setenv("TODO_RUNNER_HOME", "/first")

	first := GetHome()

	// Changing the env must not affect the cached value
	t.Setenv("TODO_RUNNER_HOME", "/second")
	second := GetHome()

	if first != second {
		t.Errorf("GetHome() not cached: first=%q, second=%q", first, second)
	}
}

func TestGetDriversDir(t *testing.T) {
	ResetHome()
	t.Setenv("TODO_RUNNER_HOME", "/test/home")

	got := GetDriversDir()
	want := filepath.Join("/test/home", "drivers", "playwright")
	if got != want {
		t.Errorf("GetDriversDir() = %q, want %q", got, want)
	}
}
