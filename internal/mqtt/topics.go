package mqtt

import "fmt"

func TopicTerminalMarkings(prefix string) string {
	return fmt.Sprintf("%s/terminal/+/markings", prefix)
}

func TopicTerminalOnline(prefix string) string {
	return fmt.Sprintf("%s/terminal/+/online", prefix)
}

func TopicTerminalHeartbeat(prefix string) string {
	return fmt.Sprintf("%s/terminal/+/heartbeat", prefix)
}

func TopicMarkings(prefix, terminalID string) string {
	return fmt.Sprintf("%s/terminal/%s/markings", prefix, terminalID)
}

func TopicEmotion(prefix, terminalID string) string {
	return fmt.Sprintf("%s/terminal/%s/emotion", prefix, terminalID)
}
