package nntp

import "errors"

// ErrArticleNotFound indicates a 430 response from the server.
var ErrArticleNotFound = errors.New("article not found")

// ErrAuthFailed indicates AUTHINFO was rejected.
var ErrAuthFailed = errors.New("authentication failed")
