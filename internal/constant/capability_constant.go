package constant

// Capability is one clinical competency domain a case review can be mapped
// against. Points are the descriptive bullet points shown in the picker.
type Capability struct {
	Name   string   `json:"name"`
	Points []string `json:"points"`
}

// Capabilities is the fixed catalog, in display order. The generation flow
// only ever accepts names from this list.
var Capabilities = []Capability{
	{
		Name: "Fitness to practise",
		Points: []string{
			"Demonstrates awareness of when their own performance, conduct or health might put patients at risk",
			"Takes action to protect patients when concerns arise",
		},
	},
	{
		Name: "Maintaining an ethical approach",
		Points: []string{
			"Treats patients, colleagues and carers with respect and without discrimination",
			"Recognises and manages ethical dilemmas in everyday practice",
		},
	},
	{
		Name: "Communication and consultation skills",
		Points: []string{
			"Establishes rapport and an effective partnership with the patient",
			"Explores the patient's ideas, concerns and expectations",
			"Explains findings and options in language the patient understands",
		},
	},
	{
		Name: "Data gathering and interpretation",
		Points: []string{
			"Gathers relevant information from history, records and investigations",
			"Interprets findings to inform the working diagnosis",
		},
	},
	{
		Name: "Clinical examination and procedural skills",
		Points: []string{
			"Chooses and performs examinations proportionate to the presentation",
			"Performs procedures safely and with consent",
		},
	},
	{
		Name: "Making a diagnosis",
		Points: []string{
			"Generates and tests an appropriate differential diagnosis",
			"Uses time and safety-netting as diagnostic tools",
		},
	},
	{
		Name: "Clinical management",
		Points: []string{
			"Provides appropriate management of common and serious conditions",
			"Arranges follow-up and referral when indicated",
		},
	},
	{
		Name: "Managing medical complexity",
		Points: []string{
			"Manages comorbidity, uncertainty and risk in ongoing care",
			"Supports health alongside illness in the same consultation",
		},
	},
	{
		Name: "Working with colleagues and in teams",
		Points: []string{
			"Works effectively with other professionals to ensure safe care",
			"Shares information appropriately at handover and referral",
		},
	},
	{
		Name: "Maintaining performance, learning and teaching",
		Points: []string{
			"Reflects on performance and acts on identified learning needs",
			"Keeps up to date with evidence and guidance relevant to the case",
		},
	},
	{
		Name: "Organisation, management and leadership",
		Points: []string{
			"Uses systems, records and time effectively for safe patient care",
			"Contributes to improving systems of care",
		},
	},
	{
		Name: "Practising holistically and promoting health",
		Points: []string{
			"Considers the psychological, social and occupational context of the case",
			"Uses opportunities for health promotion appropriately",
		},
	},
	{
		Name: "Community orientation",
		Points: []string{
			"Balances the needs of the individual patient with those of the wider community",
			"Uses local services and resources appropriately",
		},
	},
}

// ExperienceGroups is the fixed set of classification labels a case can be
// attached to. The classifier picks an ordered subset of these.
var ExperienceGroups = []string{
	"Infants, children and young people",
	"Gender, reproductive and sexual health",
	"People with long-term conditions including cancer, multi-morbidity and disability",
	"Older adults including frailty and end of life care",
	"Mental health including addiction and substance misuse",
	"Urgent and unscheduled care",
	"People with health disadvantage and vulnerabilities",
	"Population health and health promotion",
	"Clinical problem solving and decision making",
}

// MinSelectedCapabilities and MaxSelectedCapabilities bound a manual
// capability selection for one case.
const (
	MinSelectedCapabilities = 1
	MaxSelectedCapabilities = 3
)

// MinCaseDescriptionLength is the trimmed length below which a case
// description is rejected before any remote call.
const MinCaseDescriptionLength = 10

// IsKnownCapability reports whether name is in the catalog.
func IsKnownCapability(name string) bool {
	for _, c := range Capabilities {
		if c.Name == name {
			return true
		}
	}
	return false
}

// IsKnownExperienceGroup reports whether label is in the fixed group set.
func IsKnownExperienceGroup(label string) bool {
	for _, g := range ExperienceGroups {
		if g == label {
			return true
		}
	}
	return false
}
