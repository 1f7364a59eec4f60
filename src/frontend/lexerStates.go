package frontend

import "unicode/utf8"

// digits is the set of decimal digits.
const digits = "0123456789"

// lexGlobal starts the lexing process and serves as the default state.
func lexGlobal(l *lexer) stateFunc {
	for {
		r := l.next()
		switch {
		case isAlpha(r) || r == '_':
			// Keyword or identifier.
			return lexWord
		case isDigit(r):
			return lexNumber
		case r == '-' && isDigit(l.peek()):
			// Negative number.
			return lexNumber
		case r == '$':
			return lexVar
		case r == '\n':
			// Newlines end instructions.
			l.emit(itemNewline)
			l.line++
			l.startOnLine = 1
		case isSpace(r):
			// Ignore whitespace. Newlines are caught before whitespaces.
			l.ignore()
		case r == '"':
			return lexString
		case r == ',':
			l.emit(itemComma)
		case r == '/' && l.peek() == '/':
			// Ignore comments up to, but not including, the newline.
			for c := l.peek(); c != '\n' && c != eof; c = l.peek() {
				l.next()
			}
			l.ignore()
		case r == eof:
			// End of file: stop the state machine.
			l.emit(itemEOF)
			return nil
		default:
			return l.errorf("unexpected character %q at line %d:%d", r, l.line, l.startOnLine)
		}
	}
}

// lexWord scans the input string for keywords and identifiers.
func lexWord(l *lexer) stateFunc {
	// We know that the currently scanned rune is an alphabetic character or underscore.
	for {
		r := l.next()
		if !isAlpha(r) && !isDigit(r) && r != '_' {
			l.backup()
			if isKeyword(l.input[l.start:l.pos]) {
				l.emit(itemKeyword)
			} else {
				l.emit(itemWord)
			}
			return lexGlobal
		}
	}
}

// lexVar scans a frame slot or temporary name. The leading '$' has been scanned.
func lexVar(l *lexer) stateFunc {
	for r := l.next(); isAlpha(r) || isDigit(r); r = l.next() {
	}
	l.backup()
	if l.pos-l.start < 2 {
		return l.errorf("expected name after '$' at line %d:%d", l.line, l.startOnLine)
	}
	l.emit(itemVar)
	return lexGlobal
}

// lexNumber scans the input stream for an integer or floating point number. The first digit or the minus sign has
// been scanned. Zero leading numbers are accepted.
func lexNumber(l *lexer) stateFunc {
	l.acceptRun(digits)
	typ := itemInteger
	if l.accept(".") {
		// Decimal delimiter found.
		l.acceptRun(digits)
		typ = itemFloat
	}
	if r := l.peek(); isAlpha(r) || r == '_' {
		return l.errorf("malformed number %q at line %d:%d", l.input[l.start:l.pos+utf8.RuneLen(r)], l.line, l.startOnLine)
	}
	l.emit(typ)
	return lexGlobal
}

// lexString scans a string literal from the input stream.
func lexString(l *lexer) stateFunc {
	// By this point we're in the string. Accept anything until the next '"' appears.
	// Escaped '"' (\") are kept as is.
	l.ignore()
	prev, _ := utf8.DecodeRuneInString(l.input[l.pos-1:]) // Safe, because we must scan at least one rune to get here.
	for {
		r := l.next()
		if r == eof || r == '\n' {
			return l.errorf("unclosed string literal at line %d:%d", l.line, l.startOnLine-1)
		}
		// Check for escaped string termination (\").
		if r == '"' && prev != '\\' {
			// Found string termination.
			l.backup()
			l.emit(itemString)
			l.next()
			l.ignore()
			return lexGlobal
		}
		prev = r
	}
}

// ----------------------------
// ----- Helper functions -----
// ----------------------------

// isAlpha return true if rune r is an alphabetic character in the set [a-zA-Z].
func isAlpha(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

// isDigit return true if rune r is a digit in the range [0-9].
func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

// isSpace return true if rune r is a whitespace character.
func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\f' || r == '\r'
}
