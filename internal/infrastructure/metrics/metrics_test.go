package metrics

import "testing"

func TestNormalizeEndpoint(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"/chat", "/chat"},
		{"/chat/messages/chat_a1b2c3d4e5f6g7h8", "/chat/messages/:id"},
		{"/chat/messages/msg_a1b2c3d4e5f6g7h8/trailing", "/chat/messages/:id/trailing"},
		{"/history", "/history"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := NormalizeEndpoint(tc.in); got != tc.want {
			t.Fatalf("NormalizeEndpoint(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
