package settings

import (
	"context"
	"fmt"

	"gopkg.in/yaml.v3"
)

// ExportYAML renders the current settings as a YAML document suitable
// for backup or migration to another instance.
func (s *Service) ExportYAML(ctx context.Context) ([]byte, error) {
	settings, err := s.Get(ctx)
	if err != nil {
		return nil, err
	}
	data, err := yaml.Marshal(settings)
	if err != nil {
		return nil, fmt.Errorf("encoding settings: %w", err)
	}
	return data, nil
}

// ImportYAML replaces the stored settings with the decoded document and
// returns the stored state.
func (s *Service) ImportYAML(ctx context.Context, data []byte) (*Settings, error) {
	var settings Settings
	if err := yaml.Unmarshal(data, &settings); err != nil {
		return nil, fmt.Errorf("decoding settings: %w", err)
	}
	return s.Update(ctx, &settings)
}
