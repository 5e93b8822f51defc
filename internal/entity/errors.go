package entity

import "errors"

var (
	ErrLeadNotFound      = errors.New("lead not found")
	ErrAgentNotFound     = errors.New("agent not found")
	ErrNoAgentForSession = errors.New("no agent assigned to session")
	ErrUnauthorized      = errors.New("agent not allowed to act on this lead")
)
