package extract

type candidate struct {
	shape Shape
	text  string
}

// scan returns balanced top-level {...} and [...] spans in order of
// appearance. String literals are only tracked inside a span, so stray quotes
// in prose do not flip the state. An opener that never closes, or closes with
// the wrong bracket, is skipped and scanning resumes right after it.
//
// Iterating bytes is safe for the ASCII delimiters involved because UTF-8
// never uses ASCII bytes inside multi-byte sequences.
func scan(s string) []candidate {
	var out []candidate
	for i := 0; i < len(s); i++ {
		b := s[i]
		if b != '{' && b != '[' {
			continue
		}
		end := matchSpan(s, i)
		if end < 0 {
			continue
		}
		shape := ShapeObject
		if b == '[' {
			shape = ShapeArray
		}
		out = append(out, candidate{shape: shape, text: s[i : end+1]})
		i = end
	}
	return out
}

// matchSpan returns the index of the bracket closing the one at start, or -1.
func matchSpan(s string, start int) int {
	stack := make([]byte, 0, 8)
	inString := false
	escape := false

	for i := start; i < len(s); i++ {
		b := s[i]
		if escape {
			escape = false
			continue
		}
		if inString {
			switch b {
			case '\\':
				escape = true
			case '"':
				inString = false
			}
			continue
		}

		switch b {
		case '"':
			inString = true
		case '{':
			stack = append(stack, '}')
		case '[':
			stack = append(stack, ']')
		case '}', ']':
			if len(stack) == 0 || stack[len(stack)-1] != b {
				return -1
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return i
			}
		}
	}
	return -1
}
