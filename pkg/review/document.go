package review

import (
	"fmt"
	"strings"
)

// SectionKey identifies one of the four fixed sections of a generated review.
type SectionKey string

const (
	SectionBriefDescription SectionKey = "brief_description"
	SectionCapabilities     SectionKey = "capabilities"
	SectionReflection       SectionKey = "reflection"
	SectionLearningNeeds    SectionKey = "learning_needs"
)

// sectionOrder is the presentation order. It is fixed, not insertion-defined.
var sectionOrder = []SectionKey{
	SectionBriefDescription,
	SectionCapabilities,
	SectionReflection,
	SectionLearningNeeds,
}

// SectionOrder returns the fixed presentation order of section keys.
func SectionOrder() []SectionKey {
	out := make([]SectionKey, len(sectionOrder))
	copy(out, sectionOrder)
	return out
}

// IsTextSectionKey reports whether key holds free text (every key except capabilities).
func IsTextSectionKey(key SectionKey) bool {
	switch key {
	case SectionBriefDescription, SectionReflection, SectionLearningNeeds:
		return true
	}
	return false
}

// IsSectionKey reports whether key is one of the four known keys.
func IsSectionKey(key SectionKey) bool {
	return key == SectionCapabilities || IsTextSectionKey(key)
}

// SectionContent is the tagged variant held under a section key.
// Only the capabilities key ever takes the map shape.
type SectionContent interface {
	sectionContent()
}

// TextSection is free narrative text.
type TextSection struct {
	Body string
}

func (TextSection) sectionContent() {}

// CapabilityEntry is one narrative block for a selected capability.
type CapabilityEntry struct {
	Name string
	Body string
}

// CapabilityMapSection holds one entry per selected capability, in selection order.
type CapabilityMapSection struct {
	Entries []CapabilityEntry
}

func (CapabilityMapSection) sectionContent() {}

// Entry returns the body for the named capability.
func (s CapabilityMapSection) Entry(name string) (string, bool) {
	for _, e := range s.Entries {
		if e.Name == name {
			return e.Body, true
		}
	}
	return "", false
}

// Names returns the capability names in order.
func (s CapabilityMapSection) Names() []string {
	names := make([]string, len(s.Entries))
	for i, e := range s.Entries {
		names[i] = e.Name
	}
	return names
}

// Document is the canonical generated review. It is immutable-by-replacement:
// every mutation operator returns a fresh value and never touches the receiver,
// so a concurrent reader can never observe a torn state.
type Document struct {
	Title      string
	Sections   map[SectionKey]SectionContent
	RawContent string
}

// NewDocument constructs a document from a generation response.
// All four section keys must be present and the capabilities section must be a
// non-empty CapabilityMapSection, otherwise the response is malformed.
func NewDocument(title string, sections map[SectionKey]SectionContent, rawContent string) (Document, error) {
	doc := Document{
		Title:      title,
		Sections:   make(map[SectionKey]SectionContent, len(sectionOrder)),
		RawContent: rawContent,
	}
	for key, content := range sections {
		if !IsSectionKey(key) {
			return Document{}, fmt.Errorf("%w: unexpected section %q", ErrMalformedResponse, key)
		}
		doc.Sections[key] = cloneContent(content)
	}
	if err := doc.Validate(); err != nil {
		return Document{}, err
	}
	return doc, nil
}

// Validate checks the structural invariants of a document. Used both after
// generation and when deserializing persisted snapshots.
func (d Document) Validate() error {
	for _, key := range sectionOrder {
		content, ok := d.Sections[key]
		if !ok {
			return fmt.Errorf("%w: missing section %q", ErrMalformedResponse, key)
		}
		switch c := content.(type) {
		case TextSection:
			if key == SectionCapabilities {
				return fmt.Errorf("%w: capabilities section must be a capability map", ErrMalformedResponse)
			}
		case CapabilityMapSection:
			if key != SectionCapabilities {
				return fmt.Errorf("%w: section %q must be text", ErrMalformedResponse, key)
			}
			if len(c.Entries) == 0 {
				return fmt.Errorf("%w: capabilities section is empty", ErrMalformedResponse)
			}
		default:
			return fmt.Errorf("%w: section %q has unknown content", ErrMalformedResponse, key)
		}
	}
	return nil
}

// Text returns the body of a text section.
func (d Document) Text(key SectionKey) (string, bool) {
	if content, ok := d.Sections[key].(TextSection); ok {
		return content.Body, true
	}
	return "", false
}

// Capabilities returns the capability map section.
func (d Document) Capabilities() CapabilityMapSection {
	if content, ok := d.Sections[SectionCapabilities].(CapabilityMapSection); ok {
		return content
	}
	return CapabilityMapSection{}
}

// CapabilityNames returns the selected capability names in order.
func (d Document) CapabilityNames() []string {
	return d.Capabilities().Names()
}

// ReplaceWhole is total replacement after a whole-document improvement.
// No merge logic: the next document wins entirely.
func ReplaceWhole(_ Document, next Document) Document {
	return next
}

// ReplaceSection returns a new document identical to d except the named text
// section carries newBody. The capabilities key is rejected here; capability
// entries go through ReplaceCapabilityEntry.
func (d Document) ReplaceSection(key SectionKey, newBody string) (Document, error) {
	if !IsTextSectionKey(key) {
		return Document{}, fmt.Errorf("%w: %q", ErrInvalidSectionKey, key)
	}
	next := d.clone()
	next.Sections[key] = TextSection{Body: newBody}
	return next, nil
}

// ReplaceCapabilityEntry returns a new document with one capability entry
// rewritten. Capability keys are fixed at generation time: entries can be
// rewritten but never added or removed.
func (d Document) ReplaceCapabilityEntry(capabilityName string, newBody string) (Document, error) {
	caps := d.Capabilities()
	found := false
	entries := make([]CapabilityEntry, len(caps.Entries))
	for i, e := range caps.Entries {
		if e.Name == capabilityName {
			e.Body = newBody
			found = true
		}
		entries[i] = e
	}
	if !found {
		return Document{}, fmt.Errorf("%w: %q", ErrUnknownCapability, capabilityName)
	}
	next := d.clone()
	next.Sections[SectionCapabilities] = CapabilityMapSection{Entries: entries}
	return next, nil
}

func (d Document) clone() Document {
	next := Document{
		Title:      d.Title,
		Sections:   make(map[SectionKey]SectionContent, len(d.Sections)),
		RawContent: d.RawContent,
	}
	for key, content := range d.Sections {
		next.Sections[key] = cloneContent(content)
	}
	return next
}

func cloneContent(content SectionContent) SectionContent {
	switch c := content.(type) {
	case CapabilityMapSection:
		entries := make([]CapabilityEntry, len(c.Entries))
		copy(entries, c.Entries)
		return CapabilityMapSection{Entries: entries}
	default:
		return content
	}
}

// ExperienceGroups is the ordered classification label set attached to a case.
// It is logically independent of the document: no mutation coupling.
type ExperienceGroups []string

// ParseTargetSection maps a wire section type to a target key. The wire value
// "capability" plus a capability name addresses one capability entry.
func ParseTargetSection(sectionType, capabilityName string) (TargetKey, error) {
	if sectionType == "capability" {
		name := strings.TrimSpace(capabilityName)
		if name == "" {
			return TargetKey{}, fmt.Errorf("%w: capability name is required", ErrUnknownCapability)
		}
		return TargetKey{Section: SectionCapabilities, Capability: name}, nil
	}
	key := SectionKey(sectionType)
	if !IsTextSectionKey(key) {
		return TargetKey{}, fmt.Errorf("%w: %q", ErrInvalidSectionKey, key)
	}
	return TargetKey{Section: key}, nil
}
