package telegram

import (
	"testing"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantCmd  string
		wantArgs int
		wantText string
		wantErr  bool
	}{
		{"simple", "/portfolio", "portfolio", 0, "", false},
		{"uppercase", "/HELP", "help", 0, "", false},
		{"bot mention", "/start@InvestBot REF123", "start", 1, "REF123", false},
		{"arguments", "/invest core btc 5000", "invest", 3, "core btc 5000", false},
		{"keeps text spacing", "/broadcast  hello   world ", "broadcast", 2, "hello   world", false},
		{"not a command", "hello", "", 0, "", true},
		{"bare slash", "/", "", 0, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args, err := ParseCommand(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseCommand() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if args.Command != tt.wantCmd {
				t.Errorf("ParseCommand() command = %v, want %v", args.Command, tt.wantCmd)
			}
			if len(args.Raw) != tt.wantArgs {
				t.Errorf("ParseCommand() args = %v, want %d", args.Raw, tt.wantArgs)
			}
			if args.Text != tt.wantText {
				t.Errorf("ParseCommand() text = %q, want %q", args.Text, tt.wantText)
			}
		})
	}
}

func TestCommandArgs_Arg(t *testing.T) {
	args, err := ParseCommand("/sell 3")
	if err != nil {
		t.Fatalf("ParseCommand() error = %v", err)
	}
	if args.Arg(0) != "3" || args.Arg(1) != "" || args.Arg(-1) != "" {
		t.Errorf("Unexpected args %v", args.Raw)
	}
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{"5000", "5000", false},
		{"$1,250.50", "1250.5", false},
		{" 0.25 ", "0.25", false},
		{"-10", "-10", false},
		{"", "", true},
		{"ten", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseAmount(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseAmount(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if !tt.wantErr && got.String() != tt.want {
				t.Errorf("ParseAmount(%q) = %s, want %s", tt.input, got, tt.want)
			}
		})
	}
}

func TestSplitMessage(t *testing.T) {
	parts := splitMessage("aaaa\nbbbb\ncccc", 10)
	if len(parts) != 2 || parts[0] != "aaaa\nbbbb" || parts[1] != "cccc" {
		t.Errorf("Unexpected parts %q", parts)
	}
	if parts := splitMessage("", 10); parts != nil {
		t.Errorf("Expected no parts, got %q", parts)
	}
	if parts := splitMessage("abcdefghijkl", 5); len(parts) != 3 {
		t.Errorf("Expected hard split into 3 parts, got %q", parts)
	}
}
