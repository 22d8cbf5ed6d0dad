package domain

// ContentKind defines how a block produces its output.
type ContentKind string

const (
	// ContentFixed renders the payload text through the template renderer.
	ContentFixed ContentKind = "fixed"
	// ContentPrompt sends the rendered payload to the language model and relays its tokens.
	ContentPrompt ContentKind = "prompt"
	// ContentSystem is never played; it provides the system prompt for prompt blocks below it.
	ContentSystem ContentKind = "system"
)

// InteractionKind defines what the block asks from the user once its content is shown.
type InteractionKind string

const (
	InteractionNone      InteractionKind = "none"
	InteractionContinue  InteractionKind = "continue"
	InteractionButton    InteractionKind = "button"
	InteractionInput     InteractionKind = "input"
	InteractionSelect    InteractionKind = "select"
	InteractionGoto      InteractionKind = "goto"
	InteractionPhone     InteractionKind = "phone"
	InteractionCheckCode InteractionKind = "checkcode"
	InteractionLogin     InteractionKind = "login"
	InteractionPayment   InteractionKind = "payment"
	InteractionBreak     InteractionKind = "break"
)

// InteractionKinds lists every supported interaction kind.
var InteractionKinds = []InteractionKind{
	InteractionNone, InteractionContinue, InteractionButton, InteractionInput, InteractionSelect,
	InteractionGoto, InteractionPhone, InteractionCheckCode, InteractionLogin, InteractionPayment,
	InteractionBreak,
}

// Valid reports whether k is a known interaction kind.
func (k InteractionKind) Valid() bool {
	for _, known := range InteractionKinds {
		if k == known {
			return true
		}
	}
	return false
}

// JumpRule maps a value of the bound variable to a target outline item.
type JumpRule struct {
	Value  string `json:"value" yaml:"value" mapstructure:"value"`
	Target string `json:"target" yaml:"target" mapstructure:"target"`
}

// Payload holds the kind-specific configuration of a block.
type Payload struct {
	// Text is the fixed content, the model prompt, or the system prompt depending on the content kind.
	Text  string `json:"text,omitempty" yaml:"text,omitempty" mapstructure:"text"`
	// Image renders Text as a media reference instead of typed-out text.
	Image bool   `json:"image,omitempty" yaml:"image,omitempty" mapstructure:"image"`

	Model       string  `json:"model,omitempty" yaml:"model,omitempty" mapstructure:"model"`
	Temperature float64 `json:"temperature,omitempty" yaml:"temperature,omitempty" mapstructure:"temperature"`

	// Label is the UI caption (button text, input placeholder, login prompt).
	Label    string `json:"label,omitempty" yaml:"label,omitempty" mapstructure:"label"`
	// Variable is the variable written by the input handler (or read by goto rules).
	Variable string `json:"variable,omitempty" yaml:"variable,omitempty" mapstructure:"variable"`

	// CheckPrompt enables model validation of free text input. It must make the model answer
	// with a JSON object (see runtime.CheckResult).
	CheckPrompt string   `json:"check_prompt,omitempty" yaml:"check_prompt,omitempty" mapstructure:"check_prompt"`
	// Extract lists the variables the check prompt is expected to extract.
	Extract     []string `json:"extract,omitempty" yaml:"extract,omitempty" mapstructure:"extract"`

	Options     []string `json:"options,omitempty" yaml:"options,omitempty" mapstructure:"options"`
	// OptionsFrom names a variable holding a comma separated option list.
	OptionsFrom string   `json:"options_from,omitempty" yaml:"options_from,omitempty" mapstructure:"options_from"`
	Multiple    bool     `json:"multiple,omitempty" yaml:"multiple,omitempty" mapstructure:"multiple"`

	Rules []JumpRule `json:"rules,omitempty" yaml:"rules,omitempty" mapstructure:"rules"`

	Product string `json:"product,omitempty" yaml:"product,omitempty" mapstructure:"product"`
	Price   int64  `json:"price,omitempty" yaml:"price,omitempty" mapstructure:"price"`
}

// Block is an atomic content/interaction unit delivered in order within an outline item.
type Block struct {
	ID            string          `json:"id" yaml:"id"`
	OutlineItemID string          `json:"outline_item_id" yaml:"outline_item_id"`
	Order         int             `json:"order" yaml:"order"`
	Content       ContentKind     `json:"content" yaml:"content"`
	Interaction   InteractionKind `json:"interaction" yaml:"interaction"`
	Payload       Payload         `json:"payload" yaml:"payload"`
}

// Playable reports whether the block takes part in pointer advancement.
func (b Block) Playable() bool {
	return b.Content != ContentSystem
}
