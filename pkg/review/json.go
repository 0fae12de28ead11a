package review

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Wire/persistence shape. Field order here is the serialized section order.
type documentWire struct {
	CaseTitle     string       `json:"case_title"`
	Sections      sectionsWire `json:"sections"`
	ReviewContent string       `json:"review_content"`
}

type sectionsWire struct {
	BriefDescription string               `json:"brief_description"`
	Capabilities     CapabilityMapSection `json:"capabilities"`
	Reflection       string               `json:"reflection"`
	LearningNeeds    string               `json:"learning_needs"`
}

// MarshalJSON renders the capability map as a JSON object in entry order.
// encoding/json sorts Go maps by key, which would scramble the selection
// order, so the object is built by hand.
func (s CapabilityMapSection) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range s.Entries {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(e.Name)
		if err != nil {
			return nil, err
		}
		body, err := json.Marshal(e.Body)
		if err != nil {
			return nil, err
		}
		buf.Write(name)
		buf.WriteByte(':')
		buf.Write(body)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads the object back preserving key order, which a plain
// map[string]string decode would lose.
func (s *CapabilityMapSection) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("capabilities: expected JSON object")
	}
	entries := make([]CapabilityEntry, 0)
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		name, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("capabilities: expected string key")
		}
		var body string
		if err := dec.Decode(&body); err != nil {
			return fmt.Errorf("capabilities: entry %q: %w", name, err)
		}
		entries = append(entries, CapabilityEntry{Name: name, Body: body})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	s.Entries = entries
	return nil
}

func (d Document) MarshalJSON() ([]byte, error) {
	wire := documentWire{
		CaseTitle:     d.Title,
		ReviewContent: d.RawContent,
	}
	wire.Sections.BriefDescription, _ = d.Text(SectionBriefDescription)
	wire.Sections.Reflection, _ = d.Text(SectionReflection)
	wire.Sections.LearningNeeds, _ = d.Text(SectionLearningNeeds)
	wire.Sections.Capabilities = d.Capabilities()
	return json.Marshal(wire)
}

func (d *Document) UnmarshalJSON(data []byte) error {
	var wire documentWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	d.Title = wire.CaseTitle
	d.RawContent = wire.ReviewContent
	d.Sections = map[SectionKey]SectionContent{
		SectionBriefDescription: TextSection{Body: wire.Sections.BriefDescription},
		SectionCapabilities:     wire.Sections.Capabilities,
		SectionReflection:       TextSection{Body: wire.Sections.Reflection},
		SectionLearningNeeds:    TextSection{Body: wire.Sections.LearningNeeds},
	}
	return nil
}
