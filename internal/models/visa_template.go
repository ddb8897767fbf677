package models

// StepTemplate names one pipeline stage and the documents it depends on.
type StepTemplate struct {
	Name              string
	RequiredDocuments []string
}

// VisaTemplate defines the documents and ordered steps a new request starts with.
type VisaTemplate struct {
	Documents []string
	Steps     []StepTemplate
}

var visaTemplates = map[VisaType]VisaTemplate{
	VisaTypeStudent: {
		Documents: []string{
			"Passport",
			"Academic Transcripts",
			"Admission Letter",
			"Financial Statement",
			"Language Test Result",
			"Photograph",
		},
		Steps: []StepTemplate{
			{Name: "Document Review", RequiredDocuments: []string{"Passport", "Academic Transcripts", "Admission Letter"}},
			{Name: "Financial Verification", RequiredDocuments: []string{"Financial Statement"}},
			{Name: "Embassy Submission", RequiredDocuments: []string{"Photograph"}},
			{Name: "Interview Scheduling"},
			{Name: "Visa Decision"},
		},
	},
	VisaTypeWork: {
		Documents: []string{
			"Passport",
			"Employment Contract",
			"Curriculum Vitae",
			"Qualification Certificates",
			"Financial Statement",
			"Photograph",
		},
		Steps: []StepTemplate{
			{Name: "Document Review", RequiredDocuments: []string{"Passport", "Employment Contract", "Curriculum Vitae"}},
			{Name: "Employer Verification", RequiredDocuments: []string{"Employment Contract"}},
			{Name: "Embassy Submission", RequiredDocuments: []string{"Photograph"}},
			{Name: "Visa Decision"},
		},
	},
	VisaTypeTourist: {
		Documents: []string{
			"Passport",
			"Travel Itinerary",
			"Bank Statement",
			"Photograph",
		},
		Steps: []StepTemplate{
			{Name: "Document Review", RequiredDocuments: []string{"Passport", "Travel Itinerary"}},
			{Name: "Embassy Submission", RequiredDocuments: []string{"Photograph"}},
			{Name: "Visa Decision"},
		},
	},
}

// TemplateFor returns the template for the given visa type.
func TemplateFor(t VisaType) (VisaTemplate, bool) {
	tpl, ok := visaTemplates[t]
	return tpl, ok
}
