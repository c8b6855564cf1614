package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/jrsteele09/go-shh/secrets"
)

// ParamError is a client input problem with a message safe to show the user.
type ParamError struct {
	Message string
}

func (e *ParamError) Error() string {
	return e.Message
}

func missingParam(name string) error {
	return &ParamError{Message: fmt.Sprintf("Missing %s.", name)}
}

func invalidParam(name, reason string) error {
	return &ParamError{Message: fmt.Sprintf("Invalid %s: %s.", name, reason)}
}

// submitSecretParams parses the secret submission form.
func submitSecretParams(r *http.Request) (secrets.NewSecret, error) {
	if err := r.ParseForm(); err != nil {
		return secrets.NewSecret{}, &ParamError{Message: "Invalid form submission."}
	}

	description := strings.TrimSpace(r.PostFormValue("description"))
	payload := r.PostFormValue("secret")
	ttlValue := r.PostFormValue("ttl")

	if payload == "" {
		return secrets.NewSecret{}, missingParam("secret")
	}
	if ttlValue == "" {
		return secrets.NewSecret{}, missingParam("ttl")
	}
	ttl, err := secrets.ParseTTL(ttlValue)
	if err != nil {
		return secrets.NewSecret{}, invalidParam("ttl", "Must be a value from "+secrets.TTLChoices())
	}
	if utf8.RuneCountInString(description) > secrets.MaxDescriptionLength {
		return secrets.NewSecret{}, &ParamError{Message: "The description can't be longer than 100 characters."}
	}
	if len(payload) > secrets.MaxPayloadLength {
		return secrets.NewSecret{}, &ParamError{Message: "The secret can't be longer than 2,000 bytes."}
	}

	return secrets.NewSecret{
		Payload:     []byte(payload),
		TTL:         ttl,
		Description: description,
	}, nil
}

func paramErrorMessage(err error) (string, bool) {
	var paramErr *ParamError
	if errors.As(err, &paramErr) {
		return paramErr.Message, true
	}
	return "", false
}
