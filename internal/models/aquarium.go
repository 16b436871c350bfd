package models

import "strings"

// Aquarium identifies a monitored tank
type Aquarium struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// NewAquarium builds an Aquarium with its display name derived from the id
func NewAquarium(id string) Aquarium {
	return Aquarium{ID: id, Name: DisplayName(id)}
}

// DisplayName turns a controller host name like "Great_Barrier_" into "Great Barrier"
func DisplayName(id string) string {
	return strings.ReplaceAll(strings.TrimRight(id, "_"), "_", " ")
}
