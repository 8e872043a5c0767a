package app

import (
	"testing"
)

func TestParseCommand_DefaultsToRun(t *testing.T) {
	cmd := ParseCommand([]string{})
	if cmd != CommandRun {
		t.Errorf("ParseCommand([]) = %q, want %q", cmd, CommandRun)
	}
}

func TestParseCommand_Run(t *testing.T) {
	cmd := ParseCommand([]string{"run"})
	if cmd != CommandRun {
		t.Errorf("ParseCommand([run]) = %q, want %q", cmd, CommandRun)
	}
}

func TestParseCommand_Watch(t *testing.T) {
	cmd := ParseCommand([]string{"watch"})
	if cmd != CommandWatch {
		t.Errorf("ParseCommand([watch]) = %q, want %q", cmd, CommandWatch)
	}
}

func TestParseCommand_Migrate(t *testing.T) {
	cmd := ParseCommand([]string{"migrate"})
	if cmd != CommandMigrate {
		t.Errorf("ParseCommand([migrate]) = %q, want %q", cmd, CommandMigrate)
	}
}

func TestParseCommand_Healthcheck(t *testing.T) {
	cmd := ParseCommand([]string{"healthcheck"})
	if cmd != CommandHealthcheck {
		t.Errorf("ParseCommand([healthcheck]) = %q, want %q", cmd, CommandHealthcheck)
	}
}

func TestParseCommand_UnknownDefaultsToRun(t *testing.T) {
	cmd := ParseCommand([]string{"unknown"})
	if cmd != CommandRun {
		t.Errorf("ParseCommand([unknown]) = %q, want %q", cmd, CommandRun)
	}
}

func TestParseCommand_IgnoresExtraArgs(t *testing.T) {
	cmd := ParseCommand([]string{"watch", "--flag", "value"})
	if cmd != CommandWatch {
		t.Errorf("ParseCommand([watch --flag value]) = %q, want %q", cmd, CommandWatch)
	}
}

func TestCommandString(t *testing.T) {
	tests := []struct {
		cmd  Command
		want string
	}{
		{CommandRun, "run"},
		{CommandWatch, "watch"},
		{CommandMigrate, "migrate"},
		{CommandHealthcheck, "healthcheck"},
	}

	for _, tt := range tests {
		if got := string(tt.cmd); got != tt.want {
			t.Errorf("Command(%q) string = %q, want %q", tt.cmd, got, tt.want)
		}
	}
}
