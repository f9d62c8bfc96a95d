package sandbox

import "strings"

// AdaptCode applies a small set of forgiving, string-literal-aware
// source transforms so that code blocks a model writes in a
// Python-flavored dialect still run as JavaScript in the goja VM
// (spec.md §4.6 step f): Python literals, f-strings, and calls to
// known-async capabilities.
//
// asyncNames is the set of identifiers (tool names) that must be
// awaited when called bare, since every injected tool function returns
// a Promise.
func AdaptCode(code string, asyncNames map[string]struct{}) string {
	code = adaptLiteralsAndFStrings(code)
	code = adaptAutoAwait(code, asyncNames)
	return code
}

// adaptLiteralsAndFStrings walks the source once, skipping over
// existing string/template literals untouched, and outside of them:
//   - rewrites the bare identifiers True/False/None to true/false/null
//   - rewrites an f"..."  or f'...' prefixed string into a template
//     literal, translating {expr} interpolations to ${expr}
func adaptLiteralsAndFStrings(src string) string {
	var out strings.Builder
	i := 0
	n := len(src)
	for i < n {
		c := src[i]

		// f-string: f" ... " or f' ... '
		if (c == 'f' || c == 'F') && i+1 < n && (src[i+1] == '"' || src[i+1] == '\'') {
			quote := src[i+1]
			j := i + 2
			var body strings.Builder
			closed := false
			for j < n {
				if src[j] == '\\' && j+1 < n {
					body.WriteByte(src[j])
					body.WriteByte(src[j+1])
					j += 2
					continue
				}
				if src[j] == quote {
					closed = true
					j++
					break
				}
				body.WriteByte(src[j])
				j++
			}
			if closed {
				out.WriteByte('`')
				out.WriteString(fStringToTemplate(body.String()))
				out.WriteByte('`')
				i = j
				continue
			}
			// not actually a closed f-string; fall through as plain text
		}

		// existing string/template literal: copy verbatim, untouched.
		if c == '"' || c == '\'' || c == '`' {
			j := i + 1
			for j < n {
				if src[j] == '\\' && j+1 < n {
					j += 2
					continue
				}
				if src[j] == c {
					j++
					break
				}
				j++
			}
			out.WriteString(src[i:j])
			i = j
			continue
		}

		// bare identifier boundary: check for True/False/None.
		if isIdentStart(c) {
			j := i + 1
			for j < n && isIdentPart(src[j]) {
				j++
			}
			word := src[i:j]
			switch word {
			case "True":
				out.WriteString("true")
			case "False":
				out.WriteString("false")
			case "None":
				out.WriteString("null")
			default:
				out.WriteString(word)
			}
			i = j
			continue
		}

		out.WriteByte(c)
		i++
	}
	return out.String()
}

// fStringToTemplate turns Python {expr} interpolations into JS
// template-literal ${expr} form. A doubled brace {{ or }} is an escape
// for a literal brace, matching Python's own f-string escaping.
func fStringToTemplate(body string) string {
	var out strings.Builder
	i := 0
	n := len(body)
	for i < n {
		switch {
		case body[i] == '{' && i+1 < n && body[i+1] == '{':
			out.WriteByte('{')
			i += 2
		case body[i] == '}' && i+1 < n && body[i+1] == '}':
			out.WriteByte('}')
			i += 2
		case body[i] == '{':
			j := i + 1
			depth := 1
			for j < n && depth > 0 {
				if body[j] == '{' {
					depth++
				} else if body[j] == '}' {
					depth--
					if depth == 0 {
						break
					}
				}
				j++
			}
			out.WriteString("${")
			out.WriteString(body[i+1 : j])
			out.WriteByte('}')
			if j < n {
				i = j + 1
			} else {
				i = j
			}
		default:
			out.WriteByte(body[i])
			i++
		}
	}
	return out.String()
}

// adaptAutoAwait inserts "await" before a bare call to a known async
// identifier that is not already preceded by "await". It is
// deliberately conservative: it only matches `name(` at an identifier
// boundary outside of string/template literals.
func adaptAutoAwait(src string, asyncNames map[string]struct{}) string {
	if len(asyncNames) == 0 {
		return src
	}
	var out strings.Builder
	i := 0
	n := len(src)
	for i < n {
		c := src[i]
		if c == '"' || c == '\'' || c == '`' {
			j := i + 1
			for j < n {
				if src[j] == '\\' && j+1 < n {
					j += 2
					continue
				}
				if src[j] == c {
					j++
					break
				}
				j++
			}
			out.WriteString(src[i:j])
			i = j
			continue
		}
		if isIdentStart(c) {
			j := i + 1
			for j < n && isIdentPart(src[j]) {
				j++
			}
			word := src[i:j]
			k := j
			for k < n && (src[k] == ' ' || src[k] == '\t') {
				k++
			}
			_, isAsync := asyncNames[word]
			if isAsync && k < n && src[k] == '(' {
				already := strings.HasSuffix(strings.TrimRight(out.String(), " \t"), "await")
				if !already {
					out.WriteString("await ")
				}
			}
			out.WriteString(word)
			i = j
			continue
		}
		out.WriteByte(c)
		i++
	}
	return out.String()
}

func isIdentStart(c byte) bool {
	return c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}
