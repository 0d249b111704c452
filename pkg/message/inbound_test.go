package message

import "testing"

func TestInboundMessage_Command(t *testing.T) {
	t.Parallel()

	tests := []struct {
		text     string
		wantName string
		wantArgs string
		wantOK   bool
	}{
		{"/start", "start", "", true},
		{"/clone 123:abc", "clone", "123:abc", true},
		{"/Aadhar@LookupBot  658014451208 ", "aadhar", "658014451208", true},
		{"/broadcast hello   world", "broadcast", "hello   world", true},
		{"/broadcast\nServer maintenance tonight", "broadcast", "Server maintenance tonight", true},
		{"/broadcast\tline one\nline two", "broadcast", "line one\nline two", true},
		{"/aadhar\u00a0658014451208", "aadhar", "658014451208", true},
		{"9889662072", "", "", false},
		{"/", "", "", false},
		{"", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			t.Parallel()
			m := InboundMessage{Text: tt.text}
			name, args, ok := m.Command()
			if name != tt.wantName || args != tt.wantArgs || ok != tt.wantOK {
				t.Errorf("Command() = (%q, %q, %v), want (%q, %q, %v)",
					name, args, ok, tt.wantName, tt.wantArgs, tt.wantOK)
			}
		})
	}
}

func TestSender_DisplayName(t *testing.T) {
	t.Parallel()

	if got := (Sender{ID: 1, FirstName: "Asha", Username: "asha"}).DisplayName(); got != "Asha" {
		t.Errorf("got %q, want Asha", got)
	}
	if got := (Sender{ID: 1, Username: "asha"}).DisplayName(); got != "@asha" {
		t.Errorf("got %q, want @asha", got)
	}
	if got := (Sender{ID: 42}).DisplayName(); got != "42" {
		t.Errorf("got %q, want 42", got)
	}
}
