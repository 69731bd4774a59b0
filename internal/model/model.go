package model

import (
	"fmt"
	"strings"
	"time"
)

// Kind names a node namespace in the equipment tree.
type Kind string

const (
	KindMachine  Kind = "machine"
	KindAssembly Kind = "assembly"
	KindPart     Kind = "part"
)

func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "machine", "machines":
		return KindMachine, nil
	case "assembly", "assemblies":
		return KindAssembly, nil
	case "part", "parts":
		return KindPart, nil
	default:
		return "", fmt.Errorf("invalid node kind: %q (expected machine|assembly|part)", s)
	}
}

// Tree is an immutable snapshot of the machine -> assembly -> part hierarchy.
// Order within every slice is display order.
type Tree struct {
	Machines []Machine `json:"machines" yaml:"machines"`
}

type Machine struct {
	ID         string     `json:"id" yaml:"id"`
	Name       string     `json:"name" yaml:"name"`
	Assemblies []Assembly `json:"assemblies" yaml:"assemblies"`
}

type Assembly struct {
	ID    string `json:"id" yaml:"id"`
	Name  string `json:"name" yaml:"name"`
	Parts []Part `json:"parts" yaml:"parts"`
}

type Part struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

type Section string

const (
	SectionInspection  Section = "inspection"
	SectionMaintenance Section = "maintenance"
	SectionSafety      Section = "safety"
)

type OptionType string

const (
	OptionCheckbox OptionType = "checkbox"
	OptionPassFail OptionType = "pass_fail"
	OptionValue    OptionType = "value"
)

type ChecklistItem struct {
	ID          string       `json:"id" yaml:"id"`
	Text        string       `json:"text" yaml:"text"`
	Section     Section      `json:"section" yaml:"section"`
	PartID      string       `json:"partId" yaml:"partId"`
	OptionType  OptionType   `json:"optionType" yaml:"optionType"`
	Description string       `json:"description,omitempty" yaml:"description,omitempty"`
	Attachments []Attachment `json:"attachments" yaml:"-"`
}

// Attachment is either pending (IsTemp, placeholder ID, local preview URL) or
// confirmed (server ID and URL).
type Attachment struct {
	ID              string    `json:"id"`
	ChecklistItemID string    `json:"checklistItemId"`
	Filename        string    `json:"filename"`
	MimeType        string    `json:"mimeType"`
	URL             string    `json:"url"`
	Size            int64     `json:"size,omitempty"`
	CreatedAt       time.Time `json:"createdAt,omitempty"`
	IsTemp          bool      `json:"isTemp,omitempty"`
}

type IntentType string

const (
	IntentMoveAssembly IntentType = "moveAssembly"
	IntentMovePart     IntentType = "movePart"
)

// ReorderIntent is a committed move within one sibling group.
// ParentID is the machine id for moveAssembly and the assembly id for movePart.
type ReorderIntent struct {
	Type        IntentType `json:"type"`
	ContainerID string     `json:"containerId"`
	ParentID    string     `json:"parentId"`
	FromIndex   int        `json:"fromIndex"`
	ToIndex     int        `json:"toIndex"`
}
