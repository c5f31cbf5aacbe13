package automation

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/webramesh/email-marketing-sub000/internal/config"
	"github.com/webramesh/email-marketing-sub000/internal/models"
	"gopkg.in/yaml.v3"
	"gorm.io/datatypes"
)

// Document is the YAML form of an automation, as authored by operators.
//
//	name: Welcome series
//	tenantId: 1
//	trigger: {type: email_opened, campaignId: 4}
//	definition:
//	  nodes: [...]
//	  connections: [...]
type Document struct {
	TenantID uint   `yaml:"tenantId"`
	Name     string `yaml:"name"`
	Mode     string `yaml:"mode"`
	Trigger  struct {
		Type       string `yaml:"type"`
		CampaignID *uint  `yaml:"campaignId"`
		LinkURL    string `yaml:"linkUrl"`
	} `yaml:"trigger"`
	Definition map[string]any `yaml:"definition"`
	Steps      []any          `yaml:"steps"`
	Publish    bool           `yaml:"publish"`
}

// ParseDocument decodes YAML and converts the graph or steps to their stored JSON form.
func ParseDocument(r io.Reader) (*Document, *models.Automation, error) {
	var doc Document
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, nil, fmt.Errorf("decode automation yaml: %w", err)
	}

	if doc.TenantID == 0 || doc.Name == "" {
		return nil, nil, fmt.Errorf("%w: tenantId and name are required", ErrInvalidDefinition)
	}

	switch doc.Trigger.Type {
	case config.TriggerEmailOpened, config.TriggerEmailClicked, config.TriggerManual:
	default:
		return nil, nil, fmt.Errorf("%w: unknown trigger type %q", ErrInvalidDefinition, doc.Trigger.Type)
	}

	a := &models.Automation{
		TenantID:          doc.TenantID,
		Name:              doc.Name,
		Status:            config.AutomationStatusDraft,
		Mode:              doc.Mode,
		TriggerType:       doc.Trigger.Type,
		TriggerCampaignID: doc.Trigger.CampaignID,
		TriggerLinkURL:    doc.Trigger.LinkURL,
	}
	if a.Mode == "" {
		a.Mode = config.AutomationModeGraph
	}

	switch a.Mode {
	case config.AutomationModeGraph:
		raw, err := json.Marshal(doc.Definition)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrInvalidDefinition, err)
		}
		if _, err := ParseDefinition(raw); err != nil {
			return nil, nil, err
		}
		a.Definition = datatypes.JSON(raw)
	case config.AutomationModeLegacy:
		raw, err := json.Marshal(doc.Steps)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrInvalidDefinition, err)
		}
		if _, err := ParseSteps(raw); err != nil {
			return nil, nil, err
		}
		a.Steps = datatypes.JSON(raw)
	default:
		return nil, nil, fmt.Errorf("%w: unknown mode %q", ErrInvalidDefinition, a.Mode)
	}

	return &doc, a, nil
}

// Import creates a draft automation from YAML and publishes it when the document asks to.
func (s *Service) Import(ctx context.Context, r io.Reader) (*models.Automation, error) {
	doc, a, err := ParseDocument(r)
	if err != nil {
		return nil, err
	}

	if err := s.repo.CreateAutomation(ctx, a); err != nil {
		return nil, err
	}

	if doc.Publish {
		if err := s.Publish(ctx, a.TenantID, a.ID); err != nil {
			return a, fmt.Errorf("automation %d imported as draft: %w", a.ID, err)
		}
		return s.repo.GetAutomation(ctx, a.TenantID, a.ID)
	}
	return a, nil
}
