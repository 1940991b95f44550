package models

import "time"

// Teacher is a catalog entry. The roster is maintained via config the same
// way packages are; availability is published per teacher as slots.
type Teacher struct {
	ID        int64     `yaml:"id" json:"id"`
	Name      string    `yaml:"name" json:"name"`
	Type      string    `yaml:"type" json:"type"`
	IsActive  bool      `yaml:"is_active" json:"is_active"`
	CreatedAt time.Time `yaml:"-" json:"created_at"`
	UpdatedAt time.Time `yaml:"-" json:"updated_at"`
}

// Package is a lesson bundle a student can buy after the trial.
// Price is in minor units of the package currency.
type Package struct {
	ID       int64  `yaml:"id" json:"id"`
	Name     string `yaml:"name" json:"name"`
	Lessons  int    `yaml:"lessons" json:"lessons"`
	Price    int64  `yaml:"price" json:"price"`
	IsActive bool   `yaml:"is_active" json:"is_active"`
}
