// Package ident provides the source of globally unique identifiers handed out
// in response to generate requests.
package ident

import "github.com/google/uuid"

// Generator produces a globally unique identifier, or an error if it cannot.
type Generator interface {
	Generate() (string, error)
}

// GeneratorFunc adapts a function to a Generator.
type GeneratorFunc func() (string, error)

func (f GeneratorFunc) Generate() (string, error) { return f() }

// UUID generates random (version 4) UUIDs.
type UUID struct{}

func (UUID) Generate() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
