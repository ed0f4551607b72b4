package queryplan

// simpleRegex extracts the literal prefix an anchored regex pattern
// guarantees, so it can seed a ["prefix", "prefix+1") index scan. It returns
// "" for patterns too complex to bound. pure reports whether the whole
// pattern is equivalent to ^prefix, i.e. the range covers exactly the
// matching strings and the residual regex match can be skipped.
//
// The pattern must start with \A (safe under the multiline flag) or ^ (only
// without it). Of the flags, only "m" (multiline, requires \A) and "x"
// (extended: whitespace ignored, # starts a comment) are compatible with
// prefix extraction; any other flag disables it.
func simpleRegex(pattern, flags string) (prefix string, pure bool) {
	var multilineOK bool
	switch {
	case len(pattern) >= 2 && pattern[0] == '\\' && pattern[1] == 'A':
		multilineOK = true
		pattern = pattern[2:]
	case len(pattern) >= 1 && pattern[0] == '^':
		multilineOK = false
		pattern = pattern[1:]
	default:
		return "", false
	}

	extended := false
	for i := 0; i < len(flags); i++ {
		switch flags[i] {
		case 'm':
			if !multilineOK {
				return "", false
			}
		case 'x':
			extended = true
		default:
			return "", false
		}
	}

	var buf []byte
	i := 0
	for i < len(pattern) {
		c := pattern[i]
		i++
		switch {
		case c == '*' || c == '?':
			// The only two symbols that make the preceding char optional:
			// drop it and stop. Breaking here instead would mishandle /^a?/.
			if len(buf) > 0 {
				buf = buf[:len(buf)-1]
			}
			return string(buf), false
		case c == '\\':
			if i >= len(pattern) {
				return string(buf), false
			}
			e := pattern[i]
			i++
			// A backslash before an alphanumeric carries regex meaning (\d,
			// \w, ...) and stops extraction. The original only ever compared
			// the digit range as '0'..'0', so \1..\9 slip through as literal
			// digits; reproduced as-is rather than fixed.
			if (e >= 'A' && e <= 'Z') || (e >= 'a' && e <= 'z') || e == '0' {
				return string(buf), false
			}
			buf = append(buf, e)
		case isRegexMeta(c):
			return string(buf), false
		case extended && c == '#':
			// comment
			return string(buf), false
		case extended && isRegexSpace(c):
			// skipped in extended mode
		default:
			buf = append(buf, c)
		}
	}
	return string(buf), len(buf) > 0
}

// isRegexMeta reports membership in the PCRE metacharacter set that ends
// prefix extraction; '*' and '?' are handled separately since they modify
// the preceding char.
func isRegexMeta(c byte) bool {
	switch c {
	case '^', '$', '.', '[', '|', '(', ')', '+', '{':
		return true
	}
	return false
}

func isRegexSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\v', '\f', '\r':
		return true
	}
	return false
}

// simpleRegexEnd increments the prefix's last byte to form the exclusive
// upper bound of the covering scan: [prefix, simpleRegexEnd(prefix)) holds
// exactly the strings starting with prefix under byte order.
func simpleRegexEnd(prefix string) string {
	if prefix == "" {
		return ""
	}
	b := []byte(prefix)
	b[len(b)-1]++
	return string(b)
}
