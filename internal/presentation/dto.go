package presentation

import (
	"github.com/zjrosen/tamis/internal/filterbank"
)

// FilterDTO represents one registered filter for presentation
type FilterDTO struct {
	Key    string `json:"key"`
	Kind   string `json:"kind"`
	Origin string `json:"origin,omitempty"`
}

// FromRegistration converts a bank registration to a DTO
func FromRegistration(reg filterbank.Registration) FilterDTO {
	return FilterDTO{
		Key:    reg.Key,
		Kind:   string(reg.Kind),
		Origin: reg.Origin,
	}
}

// FromRegistrations converts a slice of bank registrations to DTOs
func FromRegistrations(regs []filterbank.Registration) []FilterDTO {
	dtos := make([]FilterDTO, len(regs))
	for i, reg := range regs {
		dtos[i] = FromRegistration(reg)
	}
	return dtos
}
