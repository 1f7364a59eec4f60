package frontend

// rw contains the set of all reserved words of the three address code listing: section keywords and instruction
// mnemonics. The first dimension equals the length of the word. The second dimension is the slice of all words
// of that length. Indexing by length and searching should be faster than using a hash table.
var rw = [...][]string{
	// One-grams
	{},
	// Two-grams
	{"GT", "LT", "GE", "LE", "NE", "EQ"},
	// Three-grams
	{"INT", "RET", "JSR", "POP"},
	// Four-grams
	{"VOID", "LINK", "JUMP", "PUSH", "ADDI", "ADDF", "SUBI", "SUBF", "DIVI", "DIVF"},
	// Five-grams
	{"FLOAT", "LABEL", "READI", "READF", "MULTI", "MULTF"},
	// Six-grams
	{"STRING", "PARAMS", "LOCALS", "UNLINK", "WRITEI", "WRITEF", "WRITES", "STOREI", "STOREF"},
	// Seven-grams
	{"PROGRAM"},
	// Eight-grams
	{"FUNCTION"},
}

// isKeyword returns true if the string s is a reserved word.
func isKeyword(s string) bool {
	if len(s) == 0 || len(s) > len(rw) {
		return false
	}

	// Check if string s is a reserved word by iterating over all words in rw of length len(s).
	for _, e1 := range rw[len(s)-1] {
		if e1 == s {
			return true
		}
	}
	return false
}
