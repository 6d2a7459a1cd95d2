// Package textutils collects the small set of character/string constants
// reused across codec, rest and clients for delimiter splitting and path
// building, so those packages don't scatter string literals for the same
// separators.
package textutils

const (
	EmptyStr      = ""
	WhiteSpaceStr = " "
	ColonStr      = ":"
	SemiColonStr  = ";"
	EqualStr      = "="
	PeriodStr     = "."
	ForwardSlashStr = "/"
	CloseBraceStr = "}"
	NewLineString = "\n"

	ColonChar       = ':'
	EqualChar       = '='
	DollarChar      = '$'
	HashChar        = '#'
	BackSlashChar   = '\\'
	ForwardSlashChar = '/'
	OpenBraceChar   = '{'
	CloseBraceChar  = '}'
	ALowerChar      = 'a'
	ZLowerChar      = 'z'
	AUpperChar      = 'A'
	ZUpperChar      = 'Z'
)
