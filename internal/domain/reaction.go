package domain

import "time"

type Emoji string

const (
	EmojiHeart Emoji = "❤️"
	EmojiFire  Emoji = "🔥"
	EmojiLaugh Emoji = "😂"
	EmojiWow   Emoji = "😮"
	EmojiSad   Emoji = "😢"
	EmojiClap  Emoji = "👏"
)

var emojis = []Emoji{EmojiHeart, EmojiFire, EmojiLaugh, EmojiWow, EmojiSad, EmojiClap}

func Emojis() []Emoji {
	out := make([]Emoji, len(emojis))
	copy(out, emojis)
	return out
}

func ParseEmoji(s string) (Emoji, bool) {
	for _, e := range emojis {
		if string(e) == s {
			return e, true
		}
	}
	return "", false
}

// Reaction is identified by (PostID, AuthorID).
type Reaction struct {
	PostID    string
	AuthorID  string
	Emoji     Emoji
	CreatedAt time.Time
}
