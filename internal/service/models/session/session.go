package session

import (
	"errors"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// MaxCodeLength is the longest restaurant code accepted at login.
const MaxCodeLength = 8

var ErrInvalidCode = errors.New("invalid restaurant code")

var (
	upper = cases.Upper(language.Und)
	lower = cases.Lower(language.Und)
)

// Session identifies the restaurant whose order stream is active.
type Session struct {
	Code string `json:"restaurantCode"`
	Name string `json:"restaurantName"`
}

// Empty reports whether no restaurant is logged in.
func (s Session) Empty() bool {
	return s.Code == ""
}

// RoomKey is the push channel room for the session. Rooms are matched literally, so
// they are always lowercase.
func (s Session) RoomKey() string {
	return RoomKey(s.Code)
}

// NormalizeCode turns human input into the canonical uppercase restaurant code.
func NormalizeCode(raw string) (string, error) {
	code := upper.String(strings.TrimSpace(raw))
	if code == "" || utf8.RuneCountInString(code) > MaxCodeLength || strings.ContainsAny(code, " /\t") {
		return "", ErrInvalidCode
	}

	return code, nil
}

// RoomKey lowercases a restaurant code for use on the transport boundary.
func RoomKey(code string) string {
	return lower.String(strings.TrimSpace(code))
}
