package rmw

import "strings"

// Name validation shared by all bindings. The rules match the middleware
// conventions the client layer documents: node names are C identifiers,
// namespaces are absolute slash-separated paths of node-name segments, and
// topic names are slash-separated paths that may be absolute or relative.

const maxNameLength = 255

func isNameStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isNameChar(c byte) bool {
	return isNameStart(c) || (c >= '0' && c <= '9')
}

func validToken(tok string) bool {
	if tok == "" || !isNameStart(tok[0]) {
		return false
	}
	for i := 1; i < len(tok); i++ {
		if !isNameChar(tok[i]) {
			return false
		}
	}
	return true
}

// ValidateNodeName returns StatusOK or StatusInvalidNodeName.
func ValidateNodeName(name string) Status {
	if len(name) == 0 || len(name) > maxNameLength || !validToken(name) {
		return StatusInvalidNodeName
	}
	return StatusOK
}

// ValidateNamespace returns StatusOK or StatusInvalidNamespace. The namespace
// must already be in canonical form: absolute, and either the root "/" or a
// sequence of valid segments with no trailing slash.
func ValidateNamespace(namespace string) Status {
	if namespace == "" || namespace[0] != '/' || len(namespace) > maxNameLength {
		return StatusInvalidNamespace
	}
	if namespace == "/" {
		return StatusOK
	}
	if namespace[len(namespace)-1] == '/' {
		return StatusInvalidNamespace
	}
	rest := namespace[1:]
	for len(rest) > 0 {
		seg := rest
		if i := strings.IndexByte(rest, '/'); i >= 0 {
			seg, rest = rest[:i], rest[i+1:]
		} else {
			rest = ""
		}
		if !validToken(seg) {
			return StatusInvalidNamespace
		}
	}
	return StatusOK
}

// ValidateTopicName returns StatusOK or StatusInvalidTopicName. Topic names
// may be absolute ("/chatter"), relative ("chatter"), or private ("~/status");
// every segment must be a valid token.
func ValidateTopicName(topic string) Status {
	if topic == "" || len(topic) > maxNameLength {
		return StatusInvalidTopicName
	}
	rest := topic
	if rest[0] == '~' {
		rest = rest[1:]
		if rest == "" {
			return StatusOK
		}
		if rest[0] != '/' {
			return StatusInvalidTopicName
		}
		rest = rest[1:]
	} else if rest[0] == '/' {
		rest = rest[1:]
	}
	if rest == "" {
		return StatusInvalidTopicName
	}
	for len(rest) > 0 {
		seg := rest
		if i := strings.IndexByte(rest, '/'); i >= 0 {
			seg, rest = rest[:i], rest[i+1:]
			if rest == "" {
				// Trailing slash.
				return StatusInvalidTopicName
			}
		} else {
			rest = ""
		}
		if !validToken(seg) {
			return StatusInvalidTopicName
		}
	}
	return StatusOK
}
