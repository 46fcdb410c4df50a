package common

// Discord color constants
const (
	ColorPrimary = 0x5865F2 // Discord blurple
	ColorSuccess = 0x57F287 // Green
	ColorDanger  = 0xED4245 // Red
	ColorWarning = 0xFEE75C // Yellow
	ColorInfo    = 0x3498DB // Blue
)

// Discord limits
const (
	MaxEmbedFields     = 25
	MaxEmbedFieldValue = 1024
	MaxMessageLength   = 2000
)

// HistoryPageSize is the number of changes shown by /settings history
const HistoryPageSize = 10
