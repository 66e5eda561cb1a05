package config

import (
	"testing"
)

func TestSubstituteEnvVars_Simple(t *testing.T) {
	t.Setenv("TEST_VAR_SIMPLE", "hello")

	content, missing := substituteEnvVars("value = ${TEST_VAR_SIMPLE}")
	if content != "value = hello" {
		t.Errorf("expected 'value = hello', got %q", content)
	}
	if len(missing) != 0 {
		t.Errorf("expected no missing vars, got %v", missing)
	}
}

func TestSubstituteEnvVars_Missing(t *testing.T) {
	content, missing := substituteEnvVars("value = ${CRATE_TEST_NONEXISTENT_VAR_12345}")
	if content != "value = ${CRATE_TEST_NONEXISTENT_VAR_12345}" {
		t.Errorf("expected unchanged, got %q", content)
	}
	if len(missing) != 1 || missing[0] != "CRATE_TEST_NONEXISTENT_VAR_12345" {
		t.Errorf("expected [CRATE_TEST_NONEXISTENT_VAR_12345], got %v", missing)
	}
}

func TestSubstituteEnvVars_Default(t *testing.T) {
	// Empty string triggers the default, same as unset for :- syntax.
	t.Setenv("UNSET_VAR_DEFAULT", "")

	content, missing := substituteEnvVars("value = ${UNSET_VAR_DEFAULT:-default_value}")
	if content != "value = default_value" {
		t.Errorf("expected 'value = default_value', got %q", content)
	}
	if len(missing) != 0 {
		t.Errorf("expected no missing vars with default, got %v", missing)
	}
}

func TestSubstituteEnvVars_DefaultOverriddenByEnv(t *testing.T) {
	t.Setenv("SET_VAR_OVERRIDE", "from_env")

	content, missing := substituteEnvVars("value = ${SET_VAR_OVERRIDE:-default}")
	if content != "value = from_env" {
		t.Errorf("expected 'value = from_env', got %q", content)
	}
	if len(missing) != 0 {
		t.Errorf("expected no missing vars, got %v", missing)
	}
}

func TestSubstituteEnvVars_RequiredError(t *testing.T) {
	t.Setenv("REQUIRED_VAR_TEST", "")

	_, missing := substituteEnvVars("value = ${REQUIRED_VAR_TEST:?API key is required}")
	if len(missing) != 1 {
		t.Fatalf("expected one missing var, got %v", missing)
	}
	if missing[0] != "REQUIRED_VAR_TEST (API key is required)" {
		t.Errorf("expected message in missing entry, got %q", missing[0])
	}
}

func TestSubstituteEnvVars_Multiple(t *testing.T) {
	t.Setenv("MULTI_A", "first")
	t.Setenv("MULTI_B", "second")

	content, missing := substituteEnvVars("a = ${MULTI_A}\nb = ${MULTI_B}\nc = ${MULTI_MISSING_C}")
	if content != "a = first\nb = second\nc = ${MULTI_MISSING_C}" {
		t.Errorf("got %q", content)
	}
	if len(missing) != 1 || missing[0] != "MULTI_MISSING_C" {
		t.Errorf("missing = %v", missing)
	}
}
