package db

import (
	"strings"
	"testing"
)

func TestRunMigrationsRejectsMalformedURL(t *testing.T) {
	err := RunMigrations("postgres://user@localhost:notaport/propertyhub", "../../migrations")
	if err == nil {
		t.Fatal("expected an error for a malformed database url")
	}
	if !strings.Contains(err.Error(), "parse database url") {
		t.Errorf("error = %q, want it to wrap the url parse failure", err.Error())
	}
}
