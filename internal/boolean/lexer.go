package boolean

import (
	"strings"

	"github.com/Aman-CERP/graphmem/internal/errors"
)

type tokenType int

const (
	tokWord tokenType = iota
	tokPhrase // quoted phrase, optionally field-scoped: "name:\"John Smith\""
	tokField  // field-scoped value: "type:person"
	tokAnd
	tokOr
	tokNot
	tokLParen
	tokRParen
)

type token struct {
	typ   tokenType
	field string
	value string
}

// ValidFields enumerates the recognized field selectors. "entitytype" is an
// accepted alias for "type".
var ValidFields = map[string]string{
	"name":        "name",
	"type":        "type",
	"entitytype":  "type",
	"observation": "observation",
	"tag":         "tag",
}

// lex tokenizes a raw query. Operators are case-insensitive keywords;
// quoted strings become single phrase atoms.
func lex(query string) ([]token, error) {
	var tokens []token
	runes := []rune(query)
	i := 0

	readQuoted := func() (string, error) {
		// caller positioned i at the opening quote
		i++
		start := i
		for i < len(runes) && runes[i] != '"' {
			i++
		}
		if i >= len(runes) {
			return "", errors.Parse("unterminated quoted phrase")
		}
		value := string(runes[start:i])
		i++ // closing quote
		return value, nil
	}

	for i < len(runes) {
		r := runes[i]
		switch {
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			i++
		case r == '(':
			tokens = append(tokens, token{typ: tokLParen})
			i++
		case r == ')':
			tokens = append(tokens, token{typ: tokRParen})
			i++
		case r == '"':
			value, err := readQuoted()
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, token{typ: tokPhrase, value: value})
		default:
			start := i
			colon := -1
			for i < len(runes) && !isDelimiter(runes[i]) {
				if runes[i] == ':' && colon < 0 {
					colon = i
					// A quote right after the colon starts a quoted value.
					if i+1 < len(runes) && runes[i+1] == '"' {
						break
					}
				}
				i++
			}
			word := string(runes[start:i])

			if colon >= 0 && i < len(runes) && runes[i] == ':' {
				// field:"quoted value"
				fieldName := string(runes[start:colon])
				i++ // consume ':'
				value, err := readQuoted()
				if err != nil {
					return nil, err
				}
				tok, err := fieldToken(fieldName, value)
				if err != nil {
					return nil, err
				}
				tok.typ = tokPhrase
				tokens = append(tokens, tok)
				continue
			}

			if idx := strings.IndexRune(word, ':'); idx > 0 {
				tok, err := fieldToken(word[:idx], word[idx+1:])
				if err != nil {
					return nil, err
				}
				tokens = append(tokens, tok)
				continue
			}

			switch strings.ToUpper(word) {
			case "AND":
				tokens = append(tokens, token{typ: tokAnd})
			case "OR":
				tokens = append(tokens, token{typ: tokOr})
			case "NOT":
				tokens = append(tokens, token{typ: tokNot})
			default:
				tokens = append(tokens, token{typ: tokWord, value: word})
			}
		}
	}
	return tokens, nil
}

func fieldToken(field, value string) (token, error) {
	canonical, ok := ValidFields[strings.ToLower(field)]
	if !ok {
		return token{}, errors.Parse("unknown field selector " + strings.ToLower(field) + ":")
	}
	if value == "" {
		return token{}, errors.Parse("empty value for field " + canonical + ":")
	}
	return token{typ: tokField, field: canonical, value: value}, nil
}

func isDelimiter(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '(' || r == ')' || r == '"'
}
