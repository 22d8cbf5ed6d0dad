package domain

// FrameType is the "type" field of a wire frame.
type FrameType string

const (
	FrameText          FrameType = "text"
	FrameTextEnd       FrameType = "text_end"
	FrameInput         FrameType = "input"
	FrameButtons       FrameType = "buttons"
	FrameOrder         FrameType = "order"
	FrameProfileUpdate FrameType = "profile_update"
	FrameLessonUpdate  FrameType = "lesson_update"
	FrameChapterUpdate FrameType = "chapter_update"
	FrameNextChapter   FrameType = "next_chapter"
	FrameUserLogin     FrameType = "user_login"
	FrameTeacherAvatar FrameType = "teacher_avatar"
	FramePhone         FrameType = "phone"
	FrameCheckCode     FrameType = "checkcode"
	FrameLogin         FrameType = "login"
	FrameError         FrameType = "error"
	// FrameBusy terminates a turn that could not acquire the session lock. Clients retry later.
	FrameBusy          FrameType = "busy"
)

// Frame is one unit of the streaming protocol.
type Frame struct {
	Type          FrameType `json:"type"`
	Content       any       `json:"content"`
	OutlineItemID string    `json:"outline_item_id,omitempty"`
	BlockID       string    `json:"block_id,omitempty"`
	LogID         string    `json:"log_id,omitempty"`
}

// Button is one choice offered in a buttons frame.
type Button struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// ButtonsContent is the content of a buttons frame.
type ButtonsContent struct {
	Buttons  []Button `json:"buttons"`
	Multiple bool     `json:"multiple,omitempty"`
	// Kind echoes the input kind the client must send back.
	Kind InputKind `json:"kind"`
}

// InputContent is the content of an input, phone, checkcode or login frame.
type InputContent struct {
	Label string    `json:"label,omitempty"`
	Kind  InputKind `json:"kind"`
}

// StatusContent is the content of lesson_update, chapter_update and next_chapter frames.
type StatusContent struct {
	OutlineItemID string `json:"outline_item_id"`
	PositionCode  string `json:"position_code"`
	Title         string `json:"title,omitempty"`
	Status        Status `json:"status"`
}

// OrderContent is the content of an order frame.
type OrderContent struct {
	OrderID string `json:"order_id"`
	Product string `json:"product"`
	Price   int64  `json:"price"`
	Status  string `json:"status"`
}

// ProfileContent is the content of a profile_update frame.
type ProfileContent struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}
