package sse

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFrameEncode(t *testing.T) {
	tests := []struct {
		name  string
		frame Frame
		want  string
	}{
		{
			name:  "data only",
			frame: Frame{Data: "hello"},
			want:  "data: hello\n\n",
		},
		{
			name:  "event and data",
			frame: Frame{Event: "endpoint", Data: "/messages?session_id=abc"},
			want:  "event: endpoint\ndata: /messages?session_id=abc\n\n",
		},
		{
			name:  "id event and data",
			frame: Frame{ID: "7", Event: "message", Data: `{"jsonrpc":"2.0"}`},
			want:  "id: 7\nevent: message\ndata: {\"jsonrpc\":\"2.0\"}\n\n",
		},
		{
			name:  "multiline data",
			frame: Frame{Data: "line one\nline two"},
			want:  "data: line one\ndata: line two\n\n",
		},
		{
			name:  "empty data still produces a data line",
			frame: Frame{Event: "message"},
			want:  "event: message\ndata: \n\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, string(tt.frame.encode()))
		})
	}
}

func TestOriginValidator(t *testing.T) {
	tests := []struct {
		name    string
		allowed []string
		origin  string
		want    bool
	}{
		{"wildcard allows anything", []string{"*"}, "https://evil.example", true},
		{"absent origin allowed", []string{"https://app.example"}, "", true},
		{"exact match", []string{"https://app.example"}, "https://app.example", true},
		{"case insensitive", []string{"https://app.example"}, "HTTPS://APP.EXAMPLE", true},
		{"trailing slash normalized", []string{"https://app.example"}, "https://app.example/", true},
		{"mismatch rejected", []string{"https://app.example"}, "https://other.example", false},
		{"scheme matters", []string{"https://app.example"}, "http://app.example", false},
		{"localhost any port", []string{"https://app.example"}, "http://localhost:6274", true},
		{"loopback ip any port", []string{"https://app.example"}, "http://127.0.0.1:8080", true},
		{"portless entry matches any port", []string{"https://app.example"}, "https://app.example:3000", true},
		{"garbage origin rejected", []string{"https://app.example"}, "::not-a-url::", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := newOriginValidator(tt.allowed)
			assert.Equal(t, tt.want, v.Allow(tt.origin))
		})
	}
}
