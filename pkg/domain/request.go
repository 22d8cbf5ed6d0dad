package domain

// InputKind tells the engine how to interpret the raw input of a turn.
type InputKind string

const (
	InputText      InputKind = "text"
	InputContinue  InputKind = "continue"
	InputButton    InputKind = "button"
	InputSelect    InputKind = "select"
	InputPhone     InputKind = "phone"
	InputCheckCode InputKind = "checkcode"
	InputLogin     InputKind = "login"
	InputPayment   InputKind = "payment"
	InputGoto      InputKind = "goto"
	InputEmpty     InputKind = "empty"
)

// ExpectedInput returns the input kind a block's interaction asks for.
func ExpectedInput(k InteractionKind) InputKind {
	switch k {
	case InteractionContinue:
		return InputContinue
	case InteractionButton:
		return InputButton
	case InteractionInput:
		return InputText
	case InteractionSelect:
		return InputSelect
	case InteractionPhone:
		return InputPhone
	case InteractionCheckCode:
		return InputCheckCode
	case InteractionLogin:
		return InputLogin
	case InteractionPayment:
		return InputPayment
	case InteractionGoto:
		return InputGoto
	}
	return InputEmpty
}

// Request is the entry contract of one turn.
type Request struct {
	UserID        string    `json:"user_id"`
	CourseID      string    `json:"course_id"`
	OutlineItemID string    `json:"outline_item_id,omitempty"`
	Input         string    `json:"input,omitempty"`
	InputKind     InputKind `json:"input_kind,omitempty"`
	// BlockID is the block the input answers. A stale id drops the input.
	BlockID       string    `json:"block_id,omitempty"`
	Preview       bool      `json:"preview,omitempty"`
}

// HasInput reports whether the request carries a user action.
func (r Request) HasInput() bool {
	return r.InputKind != "" && r.InputKind != InputEmpty
}
