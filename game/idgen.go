package game

import "github.com/google/uuid"

type uuidGenerator struct{}

func NewUuidGenerator() uuidGenerator {
	return uuidGenerator{}
}

func (uuidGenerator) Generate() string {
	return uuid.NewString()
}

func (uuidGenerator) Dispose(id string) {}
