package telegram

import "encoding/json"

// Update is one inbound event from the Bot API.
type Update struct {
	UpdateID int64    `json:"update_id"`
	Message  *Message `json:"message"`
}

// Message is an inbound chat message. Only the fields the bot acts on are
// mapped.
type Message struct {
	MessageID int64     `json:"message_id"`
	From      *User     `json:"from"`
	Chat      Chat      `json:"chat"`
	Text      string    `json:"text"`
	Document  *Document `json:"document"`
}

type User struct {
	ID int64 `json:"id"`
}

type Chat struct {
	ID int64 `json:"id"`
}

// Document is a file attached to an inbound message. FileID is the opaque
// handle used to fetch the bytes later.
type Document struct {
	FileID   string `json:"file_id"`
	FileName string `json:"file_name"`
	FileSize int64  `json:"file_size"`
}

// file is the getFile result; FilePath feeds the download URL.
type file struct {
	FileID   string `json:"file_id"`
	FilePath string `json:"file_path"`
}

// apiResponse is the Bot API envelope around every result.
type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	Description string          `json:"description"`
	ErrorCode   int             `json:"error_code"`
}
