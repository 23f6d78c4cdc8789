// Package validator performs static safety analysis over the restricted
// SELECT dialect accepted by the gateway. It never builds an AST: every rule
// is a pre-compiled, case-insensitive, word-bounded regular expression over a
// comment-stripped copy of the query text.
package validator

import (
	"fmt"
	"regexp"
	"strings"
)

// Default tunables, matching the Python reference implementation this
// package was distilled from.
const (
	DefaultMaxComplexity = 50
	DefaultMaxRows       = 10000
)

// Options configures a Validator.
type Options struct {
	MaxComplexity   int
	MaxRows         int
	AllowCrossJoins bool
}

// Report is the immutable result of validating one query.
type Report struct {
	IsSafe          bool
	ErrorMessage    string
	Warnings        []string
	ComplexityScore int
}

// Validator classifies SQL text as safe or unsafe and computes a complexity
// score for safe queries.
type Validator struct {
	maxComplexity   int
	maxRows         int
	allowCrossJoins bool
}

// New constructs a Validator, applying defaults for zero-valued options.
func New(opts Options) *Validator {
	v := &Validator{
		maxComplexity:   opts.MaxComplexity,
		maxRows:         opts.MaxRows,
		allowCrossJoins: opts.AllowCrossJoins,
	}
	if v.maxComplexity <= 0 {
		v.maxComplexity = DefaultMaxComplexity
	}
	if v.maxRows <= 0 {
		v.maxRows = DefaultMaxRows
	}
	return v
}

// MaxRows returns the row cap this validator wraps queries with.
func (v *Validator) MaxRows() int { return v.maxRows }

var blockedKeywords = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bDROP\b`),
	regexp.MustCompile(`(?i)\bTRUNCATE\b`),
	regexp.MustCompile(`(?i)\bDELETE\b`),
	regexp.MustCompile(`(?i)\bINSERT\b`),
	regexp.MustCompile(`(?i)\bUPDATE\b`),
	regexp.MustCompile(`(?i)\bMERGE\b`),
	regexp.MustCompile(`(?i)\bALTER\b`),
	regexp.MustCompile(`(?i)\bCREATE\b`),
	regexp.MustCompile(`(?i)\bEXEC\b`),
	regexp.MustCompile(`(?i)\bEXECUTE\b`),
	regexp.MustCompile(`(?i)\bCALL\b`),
	regexp.MustCompile(`(?i)\bGRANT\b`),
	regexp.MustCompile(`(?i)\bREVOKE\b`),
	regexp.MustCompile(`(?i)\bUNION\s+ALL\b`),
	regexp.MustCompile(`(?i)\bUNION\b`),
}

var dangerousPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bCROSS\s+JOIN\b`),
	regexp.MustCompile(`(?i)\bCARTESIAN\b`),
}

var (
	selectPrefix = regexp.MustCompile(`(?i)^\s*(SELECT|WITH)\b`)
	fromClause   = regexp.MustCompile(`(?is)\bFROM\s+(.*?)(?:\bWHERE\b|\bGROUP\b|\bORDER\b|\bHAVING\b|$)`)
	parenSpan    = regexp.MustCompile(`(?s)\([^()]*\)`)
	joinKeyword  = regexp.MustCompile(`(?i)\bJOIN\b`)
	whereClause  = regexp.MustCompile(`(?i)\bWHERE\b`)
	joinOn       = regexp.MustCompile(`(?is)\bJOIN\b.*\bON\b`)
	selectStar   = regexp.MustCompile(`(?i)\bSELECT\s+\*`)
	subquery     = regexp.MustCompile(`(?i)\(\s*SELECT\s+`)
	cte          = regexp.MustCompile(`(?i)\bWITH\s+\w+\s+AS\s*\(`)
	tableRef     = regexp.MustCompile(`(?i)\b(?:FROM|JOIN)\s+([A-Za-z_][A-Za-z0-9_]*)\s+(?:AS\s+)?[A-Za-z_][A-Za-z0-9_]*`)
	likeWildcard = regexp.MustCompile(`(?i)\bLIKE\s+['"]%`)
	orKeyword    = regexp.MustCompile(`(?i)\bOR\b`)
	distinctWord = regexp.MustCompile(`(?i)\bDISTINCT\b`)
	rownumBound  = regexp.MustCompile(`(?i)\bROWNUM\s*[<>=]+\s*\d+`)
	orderBy      = regexp.MustCompile(`(?i)\bORDER\s+BY\b`)
)

var windowFunctions = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bROW_NUMBER\s*\(`),
	regexp.MustCompile(`(?i)\bRANK\s*\(`),
	regexp.MustCompile(`(?i)\bDENSE_RANK\s*\(`),
	regexp.MustCompile(`(?i)\bNTILE\s*\(`),
	regexp.MustCompile(`(?i)\bLAG\s*\(`),
	regexp.MustCompile(`(?i)\bLEAD\s*\(`),
	regexp.MustCompile(`(?i)\bFIRST_VALUE\s*\(`),
	regexp.MustCompile(`(?i)\bLAST_VALUE\s*\(`),
	regexp.MustCompile(`(?i)\bPERCENT_RANK\s*\(`),
	regexp.MustCompile(`(?i)\bCUME_DIST\s*\(`),
}

var aggregateTokens = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bCOUNT\b`),
	regexp.MustCompile(`(?i)\bSUM\b`),
	regexp.MustCompile(`(?i)\bAVG\b`),
	regexp.MustCompile(`(?i)\bMAX\b`),
	regexp.MustCompile(`(?i)\bMIN\b`),
	regexp.MustCompile(`(?i)\bGROUP\s+BY\b`),
}

var (
	lineComment  = regexp.MustCompile(`--[^\n]*`)
	blockComment = regexp.MustCompile(`(?s)/\*.*?\*/`)
)

// StripComments removes `-- ...` and `/* ... */` spans from a query. Validate
// applies it before any rule fires, so every rule sees the comment-stripped
// text.
func StripComments(query string) string {
	out := lineComment.ReplaceAllString(query, "")
	out = blockComment.ReplaceAllString(out, "")
	return out
}

// Validate classifies a query as safe or unsafe and computes a complexity
// score for safe queries. Comments are stripped before any rule fires so
// comment-based bypasses of blocked keywords cannot succeed.
func (v *Validator) Validate(query string) Report {
	stripped := StripComments(query)

	for _, pat := range blockedKeywords {
		if pat.MatchString(stripped) {
			return Report{
				IsSafe:       false,
				ErrorMessage: fmt.Sprintf("Blocked operation detected: %s. Only SELECT queries are allowed.", pat.String()),
			}
		}
	}

	if !selectPrefix.MatchString(stripped) {
		return Report{
			IsSafe:       false,
			ErrorMessage: "Only SELECT queries (including CTEs with WITH clause) are allowed.",
		}
	}

	if !v.allowCrossJoins {
		for _, pat := range dangerousPatterns {
			if pat.MatchString(stripped) {
				return Report{
					IsSafe:       false,
					ErrorMessage: fmt.Sprintf("Dangerous pattern detected: %s. Cross joins and cartesian products are not allowed.", pat.String()),
				}
			}
		}
	}

	var warnings []string
	score := 0

	score += checkImplicitCartesian(stripped, &warnings)

	tableCount := countTables(stripped)
	score += tableCount * 5
	if tableCount > 1 {
		warnings = append(warnings, fmt.Sprintf("Query involves %d tables. Ensure proper JOIN conditions exist.", tableCount))
	}

	if tableCount > 1 && !whereClause.MatchString(stripped) {
		if !joinOn.MatchString(stripped) {
			return Report{
				IsSafe:       false,
				ErrorMessage: "Multi-table query without WHERE clause or JOIN ON conditions detected. This could create a cartesian product.",
			}
		}
		warnings = append(warnings, "Multi-table query without WHERE clause. Ensure JOIN conditions are sufficient.")
	}

	if tableCount > 1 && selectStar.MatchString(stripped) {
		score += 10
		warnings = append(warnings, "SELECT * with multiple tables can be expensive. Consider specifying columns.")
	}

	if n := len(subquery.FindAllString(stripped, -1)); n > 0 {
		score += n * 10
		warnings = append(warnings, fmt.Sprintf("Query contains %d subquery(ies). Monitor performance.", n))
		if n > 2 {
			score += (n - 2) * 5
			warnings = append(warnings, fmt.Sprintf("Deep nesting detected (%d subqueries). This can significantly impact performance.", n))
		}
	}

	if n := len(cte.FindAllString(stripped, -1)); n > 0 {
		score += n * 8
		warnings = append(warnings, fmt.Sprintf("Query contains %d CTE(s) (WITH clause). CTEs can be expensive if not materialized.", n))
	}

	windowCount := 0
	for _, pat := range windowFunctions {
		windowCount += len(pat.FindAllString(stripped, -1))
	}
	if windowCount > 0 {
		score += windowCount * 12
		warnings = append(warnings, fmt.Sprintf("Query contains %d window function(s). Window functions can be very expensive on large datasets.", windowCount))
	}

	if selfJoins := countSelfJoins(stripped); selfJoins > 0 {
		score += selfJoins * 15
		warnings = append(warnings, fmt.Sprintf("Query contains %d self-join(s). Self-joins can create large intermediate result sets.", selfJoins))
	}

	if n := len(likeWildcard.FindAllString(stripped, -1)); n > 0 {
		score += n * 10
		warnings = append(warnings, fmt.Sprintf("Query contains %d LIKE pattern(s) with leading wildcard ('%%...'). This prevents index usage and causes full table scans.", n))
	}

	if orCount := len(orKeyword.FindAllString(stripped, -1)); orCount > 2 {
		score += (orCount - 2) * 4
		warnings = append(warnings, fmt.Sprintf("Query contains %d OR condition(s). Multiple ORs can prevent index usage and degrade performance.", orCount))
	}

	if distinctWord.MatchString(stripped) {
		score += 5
		warnings = append(warnings, "DISTINCT can be expensive on large result sets.")
	}

	aggregateCount := 0
	for _, agg := range aggregateTokens {
		if agg.MatchString(stripped) {
			aggregateCount++
		}
	}
	score += aggregateCount * 3

	if score > v.maxComplexity {
		return Report{
			IsSafe:          false,
			ErrorMessage:    fmt.Sprintf("Query complexity score (%d) exceeds maximum allowed (%d). Simplify the query.", score, v.maxComplexity),
			Warnings:        warnings,
			ComplexityScore: score,
		}
	}

	return Report{
		IsSafe:          true,
		Warnings:        warnings,
		ComplexityScore: score,
	}
}

func checkImplicitCartesian(query string, warnings *[]string) int {
	m := fromClause.FindStringSubmatch(query)
	if m == nil {
		return 0
	}
	from := parenSpan.ReplaceAllString(m[1], "")
	commas := strings.Count(from, ",")
	if commas == 0 {
		return 0
	}
	*warnings = append(*warnings, fmt.Sprintf(
		"Detected %d comma-separated tables in FROM clause. This can create cartesian products. Use explicit JOIN syntax.",
		commas+1,
	))
	return commas * 20
}

func countTables(query string) int {
	m := fromClause.FindStringSubmatch(query)
	if m == nil {
		return 1
	}
	from := parenSpan.ReplaceAllString(m[1], "")
	commas := strings.Count(from, ",")
	joins := len(joinKeyword.FindAllString(from, -1))
	return 1 + commas + joins
}

func countSelfJoins(query string) int {
	matches := tableRef.FindAllStringSubmatch(query, -1)
	if len(matches) == 0 {
		return 0
	}
	counts := map[string]int{}
	for _, m := range matches {
		counts[strings.ToUpper(m[1])]++
	}
	selfJoins := 0
	for _, c := range counts {
		if c > 1 {
			selfJoins++
		}
	}
	return selfJoins
}

// hasRownumConstraint reports whether the query already pins ROWNUM.
func hasRownumConstraint(query string) bool {
	return rownumBound.MatchString(query)
}

// WrapWithRowLimit injects a ROWNUM cap into a validated query. Idempotent:
// calling it again on its own output is a no-op because the output always
// contains a ROWNUM comparison.
func (v *Validator) WrapWithRowLimit(query string) string {
	stripped := strings.TrimSpace(query)

	if hasRownumConstraint(stripped) {
		return stripped
	}

	if orderBy.MatchString(stripped) {
		return fmt.Sprintf("SELECT * FROM (\n    %s\n) WHERE ROWNUM <= %d", stripped, v.maxRows)
	}

	if whereClause.MatchString(stripped) {
		return fmt.Sprintf("%s AND ROWNUM <= %d", stripped, v.maxRows)
	}

	return fmt.Sprintf("%s WHERE ROWNUM <= %d", stripped, v.maxRows)
}
