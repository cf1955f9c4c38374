package main

import (
	"strings"
	"testing"
)

func TestRunMigrationsRequiresDSN(t *testing.T) {
	err := runMigrations("")
	if err == nil {
		t.Fatal("Expected an error when no database is configured")
	}
	if !strings.Contains(err.Error(), "POSTGRES_HOST") {
		t.Errorf("Expected the error to name the missing setting, got %v", err)
	}
}
