package domain

import (
	"errors"
	"strings"
	"time"
)

// Project is the persisted record backing one hosted instance. The record
// store owns its identity; drivers only write back URL and Settings.
type Project struct {
	ID        string
	Name      string
	Type      string
	TeamID    string
	URL       string
	Settings  Metadata
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (p Project) Validate() error {
	if strings.TrimSpace(p.ID) == "" {
		return errors.New("project id is required")
	}
	if strings.TrimSpace(p.Name) == "" {
		return errors.New("project name is required")
	}
	return nil
}

func (p Project) Clone() Project {
	p.Settings = p.Settings.Clone()
	return p
}
