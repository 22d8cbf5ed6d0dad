package domain

// Messages holds the user-facing texts the engine emits on its own behalf.
type Messages struct {
	RiskRejected   string `yaml:"risk_rejected" json:"risk_rejected"`
	Failure        string `yaml:"failure" json:"failure"`
	Busy           string `yaml:"busy" json:"busy"`
	Locked         string `yaml:"locked" json:"locked"`
	InvalidPhone   string `yaml:"invalid_phone" json:"invalid_phone"`
	CodeExpired    string `yaml:"code_expired" json:"code_expired"`
	CodeMismatch   string `yaml:"code_mismatch" json:"code_mismatch"`
	InvalidOption  string `yaml:"invalid_option" json:"invalid_option"`
	EmptyInput     string `yaml:"empty_input" json:"empty_input"`
	NotVerified    string `yaml:"not_verified" json:"not_verified"`
	NotPaid        string `yaml:"not_paid" json:"not_paid"`
	CheckFailed    string `yaml:"check_failed" json:"check_failed"`
	ContinueLabel  string `yaml:"continue_label" json:"continue_label"`
	CourseFinished string `yaml:"course_finished" json:"course_finished"`
}

// DefaultMessages returns the built-in English catalog.
func DefaultMessages() Messages {
	return Messages{
		RiskRejected:   "Sorry, this content can't be processed. Please rephrase and try again.",
		Failure:        "Something went wrong. Please try again.",
		Busy:           "Another request is in progress. Please retry in a moment.",
		Locked:         "This lesson is not available yet.",
		InvalidPhone:   "Please enter a valid mobile number.",
		CodeExpired:    "The verification code has expired. Please request a new one.",
		CodeMismatch:   "The verification code is incorrect.",
		InvalidOption:  "Please pick one of the offered options.",
		EmptyInput:     "Please type an answer.",
		NotVerified:    "Please verify your phone number first.",
		NotPaid:        "The order has not been paid yet.",
		CheckFailed:    "That answer doesn't look right. Please try again.",
		ContinueLabel:  "Continue",
		CourseFinished: "You have finished the course.",
	}
}

// Merge returns m with every empty field filled from defaults.
func (m Messages) Merge(defaults Messages) Messages {
	fill := func(dst *string, src string) {
		if *dst == "" {
			*dst = src
		}
	}
	fill(&m.RiskRejected, defaults.RiskRejected)
	fill(&m.Failure, defaults.Failure)
	fill(&m.Busy, defaults.Busy)
	fill(&m.Locked, defaults.Locked)
	fill(&m.InvalidPhone, defaults.InvalidPhone)
	fill(&m.CodeExpired, defaults.CodeExpired)
	fill(&m.CodeMismatch, defaults.CodeMismatch)
	fill(&m.InvalidOption, defaults.InvalidOption)
	fill(&m.EmptyInput, defaults.EmptyInput)
	fill(&m.NotVerified, defaults.NotVerified)
	fill(&m.NotPaid, defaults.NotPaid)
	fill(&m.CheckFailed, defaults.CheckFailed)
	fill(&m.ContinueLabel, defaults.ContinueLabel)
	fill(&m.CourseFinished, defaults.CourseFinished)
	return m
}
