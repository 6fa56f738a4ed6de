package core

import "strings"

// TopicMatcher determines whether a route pattern matches a given topic.
type TopicMatcher interface {
	Match(pattern string, topic string) bool
}

// DefaultMatcher matches topics level by level. Levels are separated by
// "." or "/", so AMQP routing keys, NATS subjects and slash-delimited topics
// all work. "*" matches exactly one level; "#" and ">" match zero or more.
//
//	"orders.created" matches "orders.created"
//	"orders/*"       matches "orders/created", not "orders/us/created"
//	"payments.#"     matches "payments", "payments.us.created"
//	"#"              matches every topic
type DefaultMatcher struct{}

func (DefaultMatcher) Match(pattern, topic string) bool {
	return match(levels(pattern), levels(topic))
}

func levels(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool { return r == '.' || r == '/' })
}

func match(pat, top []string) bool {
	for i, p := range pat {
		if p == "#" || p == ">" {
			rest := pat[i+1:]
			for j := i; j <= len(top); j++ {
				if match(rest, top[j:]) {
					return true
				}
			}
			return false
		}
		if i >= len(top) || (p != "*" && p != top[i]) {
			return false
		}
	}
	return len(pat) == len(top)
}
