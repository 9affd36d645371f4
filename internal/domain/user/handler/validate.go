package handler

import (
	"errors"
	"net/url"
)

var errInvalidWebsite = errors.New("website must be an absolute http(s) URL")

func validateURL(raw string) error {
	u, err := url.ParseRequestURI(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errInvalidWebsite
	}
	return nil
}
