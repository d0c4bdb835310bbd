package translator

import (
	"fmt"
	"regexp"
	"strings"
)

// pass carries the state of one per-target transform over one formula.
// A fresh pass is created for every (formula, target) pair, so passes
// are never shared between calls.
type pass struct {
	vocab       *Vocabulary
	target      Target
	container   string
	viewDims    []string
	needsReview bool
}

func newPass(vocab *Vocabulary, target Target, viewDims []string) *pass {
	p := &pass{vocab: vocab, target: target, viewDims: viewDims}
	switch target {
	case TargetExpr:
		p.container = "data"
	case TargetPandas:
		p.container = "df"
	}
	return p
}

// transform rewrites a normalized formula fragment into the pass's
// target language. Scoped aggregations and conditionals are handled
// before function calls so their inner pieces are rewritten through
// recursion; field references go last so function rewrites still see
// the bracketed form and never corrupt quoted field names.
func (p *pass) transform(s string) string {
	s = p.rewriteScoped(s)
	s = p.rewriteConditionals(s)
	s = p.rewriteFunctions(s)
	return p.rewriteFieldRefs(s)
}

// withContainer runs transform with a temporary container name, used
// for the lambda argument inside grouped-transform emissions.
func (p *pass) withContainer(container, s string) string {
	old := p.container
	p.container = container
	out := p.transform(s)
	p.container = old
	return out
}

// ---------------------------------------------------------------------------
// Field references

var pureFieldRef = regexp.MustCompile(`^\s*\[[^\]]+\]\s*$`)

// rewriteFieldPattern skips quote-leading bracket contents so that
// accesses already emitted by earlier rewrite stages, like df['Sales']
// or data["Sales"], are never rewritten a second time.
var rewriteFieldPattern = regexp.MustCompile(`\[([^'"\]][^\]]*)\]`)

func (p *pass) rewriteFieldRefs(s string) string {
	switch p.target {
	case TargetExpr:
		return rewriteFieldPattern.ReplaceAllString(s, p.container+`["$1"]`)
	case TargetPandas:
		return rewriteFieldPattern.ReplaceAllString(s, p.container+`['$1']`)
	case TargetSQL:
		return rewriteFieldPattern.ReplaceAllString(s, `"$1"`)
	}
	return s
}

// receiver rewrites a call argument into a method receiver. A lone
// field reference becomes a bare container access; anything else is
// parenthesized so the method binds to the whole expression.
func (p *pass) receiver(arg string) string {
	arg = strings.TrimSpace(arg)
	if pureFieldRef.MatchString(arg) {
		return p.rewriteFieldRefs(strings.TrimSpace(arg))
	}
	return "(" + p.transform(arg) + ")"
}

func (p *pass) value(arg string) string {
	return p.transform(strings.TrimSpace(arg))
}

func (p *pass) values(args []string) []string {
	out := make([]string, len(args))
	for i, a := range args {
		out[i] = p.value(a)
	}
	return out
}

// ---------------------------------------------------------------------------
// Scoped aggregations: { FIXED|INCLUDE|EXCLUDE dims : expr }

var scopedModePattern = regexp.MustCompile(`(?i)^\s*(FIXED|INCLUDE|EXCLUDE)\b`)

func (p *pass) rewriteScoped(s string) string {
	var out strings.Builder
	i := 0
	for i < len(s) {
		open := strings.IndexByte(s[i:], '{')
		if open < 0 {
			out.WriteString(s[i:])
			break
		}
		open += i
		closing := scanDelim(s, open, '{', '}')
		if closing < 0 {
			// Unmatched brace: leave the fragment untouched.
			out.WriteString(s[i:])
			break
		}
		body := s[open+1 : closing]
		m := scopedModePattern.FindStringSubmatchIndex(body)
		if m == nil {
			out.WriteString(s[i : closing+1])
			i = closing + 1
			continue
		}
		mode := strings.ToUpper(body[m[2]:m[3]])
		parts := splitTopLevel(body[m[3]:], ':')
		if len(parts) < 2 {
			out.WriteString(s[i : closing+1])
			i = closing + 1
			continue
		}
		dims := parseDims(parts[0])
		inner := strings.TrimSpace(strings.Join(parts[1:], ":"))
		out.WriteString(s[i:open])
		out.WriteString(p.emitScoped(mode, dims, inner))
		i = closing + 1
	}
	return out.String()
}

func parseDims(raw string) []string {
	var dims []string
	for _, d := range splitTopLevel(raw, ',') {
		d = strings.Trim(d, " \t[]'\"")
		if d != "" {
			dims = append(dims, d)
		}
	}
	return dims
}

// effectiveDims resolves the grouping dimensions of a scoped
// aggregation. INCLUDE and EXCLUDE need the enclosing view's
// dimensions; without them the result is a best-effort approximation
// and the pass is marked for review.
func (p *pass) effectiveDims(mode string, dims []string) []string {
	switch mode {
	case "INCLUDE":
		if p.viewDims == nil {
			p.needsReview = true
			return dims
		}
		eff := append([]string(nil), p.viewDims...)
		for _, d := range dims {
			if !containsString(eff, d) {
				eff = append(eff, d)
			}
		}
		return eff
	case "EXCLUDE":
		if p.viewDims == nil {
			p.needsReview = true
			return nil
		}
		var eff []string
		for _, d := range p.viewDims {
			if !containsString(dims, d) {
				eff = append(eff, d)
			}
		}
		return eff
	default: // FIXED
		return dims
	}
}

func (p *pass) emitScoped(mode string, dims []string, inner string) string {
	eff := p.effectiveDims(mode, dims)
	switch p.target {
	case TargetPandas:
		innerExpr := p.withContainer("x", inner)
		if len(eff) == 0 {
			return fmt.Sprintf("%s.transform(lambda x: %s)", p.container, innerExpr)
		}
		return fmt.Sprintf("%s.groupby([%s]).transform(lambda x: %s)",
			p.container, quoteList(eff, "'"), innerExpr)
	case TargetSQL:
		innerExpr := p.transform(inner)
		if len(eff) == 0 {
			return innerExpr + " OVER ()"
		}
		return fmt.Sprintf("%s OVER (PARTITION BY %s)", innerExpr, quoteList(eff, `"`))
	default:
		return fmt.Sprintf("lod(%q, [%s], %s)", mode, quoteList(eff, `"`), p.transform(inner))
	}
}

func quoteList(items []string, quote string) string {
	quoted := make([]string, len(items))
	for i, it := range items {
		quoted[i] = quote + it + quote
	}
	return strings.Join(quoted, ", ")
}

func containsString(list []string, s string) bool {
	for _, it := range list {
		if it == s {
			return true
		}
	}
	return false
}

// ---------------------------------------------------------------------------
// Conditionals: IF cond THEN val [ELSEIF cond THEN val]* [ELSE val] END

var (
	ifTokenPattern    = regexp.MustCompile(`(?i)\bIF\b`)
	condKeywordTokens = regexp.MustCompile(`(?i)\b(IF|ELSEIF|THEN|ELSE|END)\b`)
)

type condBranch struct {
	cond string
	val  string
}

func (p *pass) rewriteConditionals(s string) string {
	s = p.rewriteIIF(s)
	from := 0
	for {
		loc := ifTokenPattern.FindStringIndex(s[from:])
		if loc == nil {
			return s
		}
		ifStart, ifEnd := from+loc[0], from+loc[1]
		emit, endPos, ok := p.parseConditional(s, ifEnd)
		if !ok {
			// Unmatched IF/END chain: leave the fragment untouched
			// and keep scanning past it.
			from = ifEnd
			continue
		}
		s = s[:ifStart] + emit + s[endPos:]
		from = ifStart + len(emit)
	}
}

// parseConditional parses the full ELSEIF chain starting just past an
// IF token into ordered (condition, value) pairs, then emits the
// target idiom. Nested IF blocks inside a segment are skipped here and
// handled by the recursive transform of each segment.
func (p *pass) parseConditional(s string, ifEnd int) (string, int, bool) {
	locs := condKeywordTokens.FindAllStringIndex(s[ifEnd:], -1)
	depth := 0
	var branches []condBranch
	var curCond, elseVal string
	hasElse := false
	segStart := ifEnd
	state := "cond"
	for _, loc := range locs {
		kwStart, kwEnd := ifEnd+loc[0], ifEnd+loc[1]
		kw := strings.ToUpper(s[kwStart:kwEnd])
		if kw == "IF" {
			depth++
			continue
		}
		if depth > 0 {
			if kw == "END" {
				depth--
			}
			continue
		}
		seg := strings.TrimSpace(s[segStart:kwStart])
		switch kw {
		case "THEN":
			if state != "cond" {
				return "", 0, false
			}
			curCond = seg
			state = "value"
			segStart = kwEnd
		case "ELSEIF":
			if state != "value" {
				return "", 0, false
			}
			branches = append(branches, condBranch{curCond, seg})
			state = "cond"
			segStart = kwEnd
		case "ELSE":
			if state != "value" {
				return "", 0, false
			}
			branches = append(branches, condBranch{curCond, seg})
			state = "else"
			hasElse = true
			segStart = kwEnd
		case "END":
			switch state {
			case "value":
				branches = append(branches, condBranch{curCond, seg})
			case "else":
				elseVal = seg
			default:
				return "", 0, false
			}
			return p.emitConditional(branches, elseVal, hasElse), kwEnd, true
		}
	}
	return "", 0, false
}

func (p *pass) emitConditional(branches []condBranch, elseVal string, hasElse bool) string {
	conds := make([]string, len(branches))
	vals := make([]string, len(branches))
	for i, b := range branches {
		conds[i] = p.transform(b.cond)
		vals[i] = p.transform(b.val)
	}
	var elseExpr string
	if hasElse {
		elseExpr = p.transform(elseVal)
	}

	switch p.target {
	case TargetPandas:
		if elseExpr == "" {
			elseExpr = "np.nan"
		}
		out := elseExpr
		for i := len(branches) - 1; i >= 0; i-- {
			out = fmt.Sprintf("np.where(%s, %s, %s)", conds[i], vals[i], out)
		}
		return out
	case TargetSQL:
		var sb strings.Builder
		sb.WriteString("CASE")
		for i := range branches {
			fmt.Fprintf(&sb, " WHEN %s THEN %s", conds[i], vals[i])
		}
		if hasElse {
			sb.WriteString(" ELSE " + elseExpr)
		}
		sb.WriteString(" END")
		return sb.String()
	default:
		if elseExpr == "" {
			elseExpr = "nil"
		}
		out := elseExpr
		for i := len(branches) - 1; i >= 0; i-- {
			out = fmt.Sprintf("(%s ? %s : %s)", conds[i], vals[i], out)
		}
		return out
	}
}

// rewriteIIF rewrites IIF(cond, then, else) calls into the same
// conditional idiom as IF/THEN/ELSE blocks.
func (p *pass) rewriteIIF(s string) string {
	return p.rewriteCalls(s, "IIF", func(args []string) (string, bool) {
		if len(args) < 3 {
			return "", false
		}
		return p.emitConditional(
			[]condBranch{{cond: args[0], val: args[1]}}, args[2], true), true
	})
}

// ---------------------------------------------------------------------------
// Function rewrites

func (p *pass) rewriteFunctions(s string) string {
	for _, name := range p.vocab.Names() {
		mapping, _ := p.vocab.Lookup(name)
		form := mapping.ForTarget(p.target)
		if form == "" {
			continue
		}
		switch p.target {
		case TargetExpr:
			s = p.rewriteExprFunc(s, name, form)
		case TargetPandas:
			s = p.rewritePandasFunc(s, name, form)
		case TargetSQL:
			s = p.rewriteSQLFunc(s, name, form)
		}
	}
	return s
}

func (p *pass) rewriteExprFunc(s, name, form string) string {
	switch name {
	case "AND", "OR", "NOT":
		return tokenReplace(s, name, form)
	case "TODAY", "NOW":
		s = strings.ReplaceAll(s, name+"()", form)
		return tokenReplace(s, name, form)
	case "CONTAINS", "STARTSWITH", "ENDSWITH":
		// expr spells these as infix operators.
		return p.rewriteCalls(s, name, func(args []string) (string, bool) {
			if len(args) != 2 {
				return "", false
			}
			return "(" + p.value(args[0]) + " " + form + " " + p.value(args[1]) + ")", true
		})
	default:
		return p.rewriteCalls(s, name, func(args []string) (string, bool) {
			return form + "(" + strings.Join(p.values(args), ", ") + ")", true
		})
	}
}

func (p *pass) rewritePandasFunc(s, name, form string) string {
	switch {
	case form == "&" || form == "|" || form == "~" || form == "index" || strings.HasPrefix(form, "pd."):
		return tokenReplace(s, name, form)
	case strings.HasSuffix(form, ")"):
		// Method-style: FUNC(x) becomes receiver.method(). Extra
		// arguments are injected into the trailing call parens.
		return p.rewriteCalls(s, name, func(args []string) (string, bool) {
			if len(args) == 0 {
				return form, true
			}
			recv := p.receiver(args[0])
			if len(args) == 1 {
				return recv + "." + form, true
			}
			inject := strings.Join(p.values(args[1:]), ", ")
			if strings.HasSuffix(form, "()") {
				return recv + "." + form[:len(form)-2] + "(" + inject + ")", true
			}
			return recv + "." + form + "(" + inject + ")", true
		})
	case strings.HasPrefix(form, "dt.") || strings.HasPrefix(form, "str.") || form == "fillna":
		// Accessor-style: property for one argument, method call for more.
		return p.rewriteCalls(s, name, func(args []string) (string, bool) {
			if len(args) == 0 {
				return form, true
			}
			recv := p.receiver(args[0])
			if len(args) == 1 {
				return recv + "." + form, true
			}
			return recv + "." + form + "(" + strings.Join(p.values(args[1:]), ", ") + ")", true
		})
	default:
		return p.rewriteCalls(s, name, func(args []string) (string, bool) {
			return form + "(" + strings.Join(p.values(args), ", ") + ")", true
		})
	}
}

func (p *pass) rewriteSQLFunc(s, name, form string) string {
	switch {
	case name == "AND" || name == "OR" || name == "NOT":
		return tokenReplace(s, name, form)
	case name == "TODAY" || name == "NOW":
		s = strings.ReplaceAll(s, name+"()", form)
		return tokenReplace(s, name, form)
	case name == "ISNULL":
		return p.rewriteCalls(s, name, func(args []string) (string, bool) {
			if len(args) != 1 {
				return "", false
			}
			return p.value(args[0]) + " IS NULL", true
		})
	case name == "ZN":
		return p.rewriteCalls(s, name, func(args []string) (string, bool) {
			if len(args) != 1 {
				return "", false
			}
			return "COALESCE(" + p.value(args[0]) + ", 0)", true
		})
	case name == "COUNTD":
		return p.rewriteCalls(s, name, func(args []string) (string, bool) {
			return "COUNT(DISTINCT " + strings.Join(p.values(args), ", ") + ")", true
		})
	case name == "CONTAINS" || name == "STARTSWITH" || name == "ENDSWITH":
		return p.rewriteCalls(s, name, func(args []string) (string, bool) {
			if len(args) != 2 {
				return "", false
			}
			col, pat := p.value(args[0]), p.value(args[1])
			switch name {
			case "STARTSWITH":
				return col + " LIKE " + pat + " || '%'", true
			case "ENDSWITH":
				return col + " LIKE '%' || " + pat, true
			default:
				return col + " LIKE '%' || " + pat + " || '%'", true
			}
		})
	case strings.HasSuffix(form, "() OVER"):
		base := strings.TrimSuffix(form, "() OVER")
		return p.rewriteCalls(s, name, func(args []string) (string, bool) {
			// RANK/ROW_NUMBER take no arguments in SQL; the operand
			// becomes the window ordering instead.
			if name == "RANK" || name == "INDEX" {
				if len(args) == 0 {
					return base + "() OVER ()", true
				}
				return base + "() OVER (ORDER BY " + strings.Join(p.values(args), ", ") + ")", true
			}
			return base + "(" + strings.Join(p.values(args), ", ") + ") OVER ()", true
		})
	default:
		return p.rewriteCalls(s, name, func(args []string) (string, bool) {
			return form + "(" + strings.Join(p.values(args), ", ") + ")", true
		})
	}
}

// tokenReplace substitutes every standalone occurrence of the
// canonical name. Occurrences inside bracketed field references never
// reach this point since field references are rewritten last.
func tokenReplace(s, name, form string) string {
	re := regexp.MustCompile(`\b` + regexp.QuoteMeta(name) + `\b`)
	return re.ReplaceAllString(s, form)
}

// ---------------------------------------------------------------------------
// Call scanning

// rewriteCalls finds every standalone NAME(...) occurrence, splits its
// argument list on top-level commas, and substitutes whatever emit
// produces. When emit declines (ok=false) the call text is left
// untouched, which is the degrade path for argument shapes the rewrite
// cannot handle.
func (p *pass) rewriteCalls(s, name string, emit func(args []string) (string, bool)) string {
	from := 0
	for {
		start, argStart, argEnd, end, ok := findCall(s, name, from)
		if !ok {
			return s
		}
		var args []string
		for _, a := range splitTopLevel(s[argStart:argEnd], ',') {
			if t := strings.TrimSpace(a); t != "" {
				args = append(args, t)
			}
		}
		text, done := emit(args)
		if !done {
			from = end
			continue
		}
		s = s[:start] + text + s[end:]
		from = start + len(text)
	}
}

func isWordChar(c byte) bool {
	return c == '_' || ('0' <= c && c <= '9') || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}

// findCall locates the first standalone NAME token at or after from
// that is followed by a parenthesized argument list. The returned
// argument span excludes the parentheses; end is the index just past
// the closing one.
func findCall(s, name string, from int) (start, argStart, argEnd, end int, ok bool) {
	for from <= len(s)-len(name) {
		idx := strings.Index(s[from:], name)
		if idx < 0 {
			return
		}
		idx += from
		if (idx > 0 && isWordChar(s[idx-1])) ||
			(idx+len(name) < len(s) && isWordChar(s[idx+len(name)])) {
			from = idx + len(name)
			continue
		}
		j := idx + len(name)
		for j < len(s) && s[j] == ' ' {
			j++
		}
		if j >= len(s) || s[j] != '(' {
			from = idx + len(name)
			continue
		}
		closing := scanDelim(s, j, '(', ')')
		if closing < 0 {
			from = idx + len(name)
			continue
		}
		return idx, j + 1, closing, closing + 1, true
	}
	return
}

// scanDelim returns the index of the delimiter closing the one at
// open, honoring quoted strings. Returns -1 when unbalanced.
func scanDelim(s string, open int, openCh, closeCh byte) int {
	depth := 0
	var quote byte
	for i := open; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '\'', '"':
			quote = c
		case openCh:
			depth++
		case closeCh:
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// splitTopLevel splits on a separator byte at nesting depth zero,
// honoring parentheses, brackets, braces and quoted strings.
func splitTopLevel(s string, sep byte) []string {
	var parts []string
	depth := 0
	var quote byte
	last := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '\'', '"':
			quote = c
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
		default:
			if c == sep && depth == 0 {
				parts = append(parts, s[last:i])
				last = i + 1
			}
		}
	}
	return append(parts, s[last:])
}
