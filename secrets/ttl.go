package secrets

import (
	"fmt"
	"strings"
	"time"
)

// TTL is one of the fixed lifetimes a secret can be given.
type TTL string

const (
	TTL5Minutes  TTL = "5m"
	TTL15Minutes TTL = "15m"
	TTL30Minutes TTL = "30m"
	TTL1Hour     TTL = "1h"
)

type ttlInfo struct {
	duration time.Duration
	label    string
}

var validTTLs = map[TTL]ttlInfo{
	TTL5Minutes:  {duration: 5 * time.Minute, label: "5 minutes"},
	TTL15Minutes: {duration: 15 * time.Minute, label: "15 minutes"},
	TTL30Minutes: {duration: 30 * time.Minute, label: "30 minutes"},
	TTL1Hour:     {duration: time.Hour, label: "1 hour"},
}

// TTLs lists the valid lifetimes, shortest first.
func TTLs() []TTL {
	return []TTL{TTL5Minutes, TTL15Minutes, TTL30Minutes, TTL1Hour}
}

// ParseTTL parses one of 5m, 15m, 30m or 1h.
func ParseTTL(s string) (TTL, error) {
	ttl := TTL(s)
	if !ttl.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidTTL, s)
	}
	return ttl, nil
}

// TTLChoices renders the valid values as "5m,15m,30m,1h".
func TTLChoices() string {
	choices := make([]string, 0, len(validTTLs))
	for _, ttl := range TTLs() {
		choices = append(choices, string(ttl))
	}
	return strings.Join(choices, ",")
}

func (t TTL) Valid() bool {
	_, ok := validTTLs[t]
	return ok
}

func (t TTL) Duration() time.Duration {
	return validTTLs[t].duration
}

// Label is the human readable form, e.g. "15 minutes".
func (t TTL) Label() string {
	return validTTLs[t].label
}
