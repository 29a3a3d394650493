package mqtt

import (
	"strings"
	"unicode/utf8"
)

// ValidateTopicName checks a topic name used in PUBLISH. Topic names must be
// non-empty UTF-8 MQTT strings with no wildcard or null characters.
// Session.Send fails with the same error for an invalid topic.
func ValidateTopicName(topic string) error {
	if topic == "" {
		return errEmptyTopic
	}
	if len(topic) > 0xffff || !utf8.ValidString(topic) {
		return errInvalidTopic
	}
	if isWildcard(topic) || strings.IndexByte(topic, 0) >= 0 {
		return errInvalidTopic
	}
	return nil
}

func isWildcard(topic string) bool {
	return strings.IndexByte(topic, '#') >= 0 || strings.IndexByte(topic, '+') >= 0
}

// PublishSize returns the size on the wire of the QoS0 PUBLISH packet Session.Send
// builds for topic and content of length contentLen. The session write buffer
// must be at least this long.
func PublishSize(topic string, contentLen int) int {
	remlen := uint32(VariablesPublish{TopicName: bytesFromString(topic)}.Size(QoS0) + contentLen)
	return newHeader(PacketPublish, 0, remlen).Size() + int(remlen)
}
