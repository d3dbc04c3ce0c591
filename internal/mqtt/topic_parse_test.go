package mqtt

import "testing"

func TestParseTerminalID(t *testing.T) {
	tests := []struct {
		topic   string
		prefix  string
		want    string
		wantErr bool
	}{
		{topic: TopicMarkings("bodyfeel", "t1"), prefix: "bodyfeel", want: "t1"},
		{topic: TopicEmotion("lab/bodyfeel", "kiosk-2"), prefix: "lab/bodyfeel", want: "kiosk-2"},
		{topic: "bodyfeel/terminal/t1", prefix: "bodyfeel", wantErr: true},
		{topic: "other/terminal/t1/markings", prefix: "bodyfeel", wantErr: true},
		{topic: "bodyfeel/device/t1/markings", prefix: "bodyfeel", wantErr: true},
		{topic: "bodyfeel/terminal//markings", prefix: "bodyfeel", wantErr: true},
		{topic: TopicTerminalMarkings("bodyfeel"), prefix: "bodyfeel", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseTerminalID(tt.topic, tt.prefix)
		if tt.wantErr {
			if err == nil {
				t.Fatalf("ParseTerminalID(%q) expected error, got %q", tt.topic, got)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ParseTerminalID(%q): %v", tt.topic, err)
		}
		if got != tt.want {
			t.Fatalf("ParseTerminalID(%q)=%q, want %q", tt.topic, got, tt.want)
		}
	}
}

func TestTopics(t *testing.T) {
	if got := TopicTerminalOnline("bf"); got != "bf/terminal/+/online" {
		t.Fatalf("online topic=%s", got)
	}
	if got := TopicTerminalHeartbeat("bf"); got != "bf/terminal/+/heartbeat" {
		t.Fatalf("heartbeat topic=%s", got)
	}
	if got := TopicEmotion("bf", "t9"); got != "bf/terminal/t9/emotion" {
		t.Fatalf("emotion topic=%s", got)
	}
}
