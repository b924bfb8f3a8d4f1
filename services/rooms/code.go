package rooms

import (
	"regexp"
	"strings"
	"unicode/utf8"

	game_constants "Mobius/constants/game"

	"github.com/jaevor/go-nanoid"
)

var codePattern = regexp.MustCompile(`^[A-Z0-9]{4,6}$`)

// NormalizeCode upper-cases and validates a user supplied room code.
func NormalizeCode(raw string) (string, error) {
	code := strings.ToUpper(strings.TrimSpace(raw))
	if !codePattern.MatchString(code) {
		return "", ErrInvalidCode
	}
	return code, nil
}

// NormalizeName trims a display name and checks its length.
func NormalizeName(raw string) (string, error) {
	name := strings.Join(strings.Fields(raw), " ")
	if name == "" || utf8.RuneCountInString(name) > game_constants.MAX_NAME_LENGTH {
		return "", ErrInvalidName
	}
	return name, nil
}

func newCodeGenerator() func() string {
	gen, err := nanoid.CustomASCII(game_constants.CODE_ALPHABET, game_constants.NEW_CODE_LENGTH)
	if err != nil {
		// alphabet and length are constants
		panic(err)
	}
	return gen
}
