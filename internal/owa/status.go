package owa

import (
	"errors"
	"strings"
)

// ResponseStatus is the per-message status block every write operation
// returns.
type ResponseStatus struct {
	ResponseClass string `json:"ResponseClass"`
	MessageText   string `json:"MessageText"`
}

// StatusResponse is the response envelope for write operations where
// only success or failure matters.
type StatusResponse struct {
	Body struct {
		ResponseMessages struct {
			Items []ResponseStatus `json:"Items"`
		} `json:"ResponseMessages"`
	} `json:"Body"`
}

// Err collects the error messages of failed response items, nil when
// everything succeeded.
func (r StatusResponse) Err() error {
	var msgs []string
	for _, item := range r.Body.ResponseMessages.Items {
		if item.ResponseClass == "Error" {
			msg := item.MessageText
			if msg == "" {
				msg = "unknown error"
			}
			msgs = append(msgs, msg)
		}
	}
	if len(msgs) == 0 {
		return nil
	}
	return errors.New(strings.Join(msgs, "; "))
}
