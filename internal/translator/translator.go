package translator

import (
	"regexp"
	"strings"
)

// fieldRefPattern matches a bracketed field reference. The interior is
// taken verbatim, no unescaping. The dependency mapper relies on this
// exact extraction; both call sites must stay byte-identical or
// dependency resolution silently diverges from translation output.
var fieldRefPattern = regexp.MustCompile(`\[([^\]]+)\]`)

// ExtractFieldRefs returns the de-duplicated field names referenced by
// a formula, in order of first appearance.
func ExtractFieldRefs(formula string) []string {
	matches := fieldRefPattern.FindAllStringSubmatch(formula, -1)
	seen := make(map[string]bool, len(matches))
	refs := make([]string, 0, len(matches))
	for _, m := range matches {
		if !seen[m[1]] {
			seen[m[1]] = true
			refs = append(refs, m[1])
		}
	}
	return refs
}

// Translator translates one formula at a time. It is stateless across
// calls; the only shared state is the injected vocabulary, which is
// immutable, so a single Translator may be used concurrently.
type Translator struct {
	vocab *Vocabulary
}

// New creates a Translator with the given vocabulary. A nil vocabulary
// selects the default function table.
func New(vocab *Vocabulary) *Translator {
	if vocab == nil {
		vocab = DefaultVocabulary()
	}
	return &Translator{vocab: vocab}
}

// Normalize collapses whitespace runs to single spaces and case-folds
// every vocabulary function name to its canonical uppercase spelling.
// Normalizing an already-normalized formula is a no-op.
func (t *Translator) Normalize(formula string) string {
	formula = strings.Join(strings.Fields(formula), " ")
	return t.vocab.Fold(formula)
}

// Translate translates a formula with no enclosing view context.
// INCLUDE/EXCLUDE scoped aggregations come back flagged NeedsReview
// since their effective grouping cannot be resolved without the view's
// dimensions.
//
// Translate never fails: a target that cannot be derived is left empty
// or contains the untransformed fragment, and the remaining fields are
// still populated. Callers should treat an unexpectedly-unmodified
// expression as a signal worth logging, not as proof of correctness.
func (t *Translator) Translate(formula string) Result {
	return t.TranslateInContext(formula, nil)
}

// TranslateInContext translates a formula given the dimension list of
// the enclosing visual, which resolves INCLUDE/EXCLUDE scoped
// aggregations exactly instead of best-effort.
func (t *Translator) TranslateInContext(formula string, viewDims []string) Result {
	norm := t.Normalize(formula)

	res := Result{
		Formula:             norm,
		Dependencies:        ExtractFieldRefs(norm),
		RequiresAggregation: containsAny(norm, aggregationNames),
		IsWindowFunction:    containsAny(norm, windowNames),
	}

	for _, target := range []Target{TargetExpr, TargetPandas, TargetSQL} {
		p := newPass(t.vocab, target, viewDims)
		out := p.transform(norm)
		switch target {
		case TargetExpr:
			res.Expr = out
		case TargetPandas:
			res.Pandas = out
		case TargetSQL:
			res.SQL = out
		}
		if p.needsReview {
			res.NeedsReview = true
		}
	}
	return res
}

// containsAny reports whether any of the names appears as a substring
// of the formula, case-insensitively. Deliberately not tokenized: a
// field name containing one of the substrings produces a false
// positive. See the Result field docs.
func containsAny(formula string, names []string) bool {
	upper := strings.ToUpper(formula)
	for _, name := range names {
		if strings.Contains(upper, name) {
			return true
		}
	}
	return false
}
