// Package topic parses and validates broker subscription references.
//
// A Topic is a URL-like value identifying one subscription endpoint:
// scheme, host, optional port, and a subject derived from the path.
// Compressing endpoint and subject into one value lets a Pipeline treat
// subscription registration as a flat list of opaque topics, and check
// the "single broker endpoint" invariant with a set-cardinality test
// over Server(t).
package topic

import (
	"net/url"
	"strconv"
	"strings"
)

const defaultPort = 4222

// Topic is a validated (scheme, host, port, subject) descriptor.
type Topic struct {
	Scheme  string
	Host    string
	Port    int
	Subject string
}

// Parse accepts a URL-like value such as "nats://localhost:4222/nova.raw"
// and returns a validated Topic. It fails with ErrBadTopic if the scheme
// is not "nats", the host is missing, or the subject (path with its
// leading slash stripped) is empty.
func Parse(value string) (Topic, error) {
	u, err := url.Parse(value)
	if err != nil {
		return Topic{}, ErrBadTopic("malformed topic reference: " + value)
	}

	if u.Scheme != "nats" {
		return Topic{}, ErrBadTopic("unsupported scheme: " + u.Scheme)
	}
	if u.Hostname() == "" {
		return Topic{}, ErrBadTopic("missing host in topic: " + value)
	}

	subject := strings.TrimPrefix(u.Path, "/")
	if subject == "" {
		return Topic{}, ErrBadTopic("missing subject in topic: " + value)
	}

	port := defaultPort
	if p := u.Port(); p != "" {
		parsed, err := strconv.Atoi(p)
		if err != nil {
			return Topic{}, ErrBadTopic("invalid port in topic: " + value)
		}
		port = parsed
	}

	return Topic{
		Scheme:  u.Scheme,
		Host:    u.Hostname(),
		Port:    port,
		Subject: subject,
	}, nil
}

// Server returns the broker endpoint this topic resolves to, e.g.
// "nats://localhost:4222".
func (t Topic) Server() string {
	return t.Scheme + "://" + t.Host + ":" + strconv.Itoa(t.Port)
}

// SubjectName returns the broker subject name (path with leading slash removed).
func (t Topic) SubjectName() string {
	return t.Subject
}
