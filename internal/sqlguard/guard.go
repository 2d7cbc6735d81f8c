// Package sqlguard rejects any statement that is not a single read-only
// query over the sales table before it reaches the store.
package sqlguard

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/salesbot/salesbot/internal/schema"
)

var ErrRejected = errors.New("sql rejected")

type Error struct {
	Reason string
}

func (e *Error) Error() string {
	return "sql rejected: " + e.Reason
}

func (e *Error) Is(target error) bool {
	return target == ErrRejected
}

func reject(format string, args ...any) error {
	return &Error{Reason: fmt.Sprintf(format, args...)}
}

var forbiddenKeywords = setOf(
	"INSERT", "UPDATE", "DELETE", "DROP", "ALTER", "CREATE", "TRUNCATE", "GRANT", "REVOKE",
	"COPY", "INTO", "ATTACH", "DETACH", "PRAGMA", "SET", "RESET", "CALL", "EXEC", "EXECUTE",
	"MERGE", "UPSERT", "INSTALL", "LOAD", "EXPORT", "IMPORT", "VACUUM", "CHECKPOINT",
	"COMMIT", "ROLLBACK", "BEGIN", "LOCK", "LISTEN", "NOTIFY", "PREPARE", "DEALLOCATE",
)

var keywords = setOf(
	"SELECT", "FROM", "WHERE", "GROUP", "BY", "ORDER", "HAVING", "LIMIT", "OFFSET", "AS",
	"AND", "OR", "NOT", "IN", "IS", "NULL", "LIKE", "ILIKE", "BETWEEN", "CASE", "WHEN",
	"THEN", "ELSE", "END", "DISTINCT", "ASC", "DESC", "JOIN", "INNER", "LEFT", "RIGHT",
	"FULL", "OUTER", "CROSS", "ON", "USING", "UNION", "ALL", "INTERSECT", "EXCEPT", "WITH",
	"RECURSIVE", "OVER", "PARTITION", "ROWS", "RANGE", "PRECEDING", "FOLLOWING", "UNBOUNDED",
	"CURRENT", "ROW", "NULLS", "FIRST", "LAST", "TRUE", "FALSE", "INTERVAL", "DATE",
	"TIMESTAMP", "CAST", "EXTRACT", "FILTER", "EXISTS", "ANY", "SOME", "FETCH", "NEXT",
	"ONLY", "WITHIN", "LEADING", "TRAILING", "BOTH", "FOR", "ESCAPE", "SIMILAR", "TO",
	"YEAR", "MONTH", "DAY", "QUARTER", "WEEK", "DOW", "HOUR", "MINUTE", "SECOND", "EPOCH",
	"DECIMAL", "NUMERIC", "INTEGER", "INT", "BIGINT", "FLOAT", "DOUBLE", "REAL", "VARCHAR",
	"TEXT", "CHAR", "BOOLEAN", "PRECISION",
)

var functions = setOf(
	"SUM", "COUNT", "AVG", "MIN", "MAX", "ROUND", "CEIL", "CEILING", "FLOOR", "ABS",
	"COALESCE", "NULLIF", "GREATEST", "LEAST", "LOWER", "UPPER", "TRIM", "LTRIM", "RTRIM",
	"LENGTH", "SUBSTRING", "SUBSTR", "CONCAT", "REPLACE", "POSITION", "SPLIT_PART",
	"DATE_TRUNC", "DATE_PART", "TO_CHAR", "STRFTIME", "NOW", "CURRENT_DATE",
	"CURRENT_TIMESTAMP", "AGE", "MAKE_DATE", "RANK", "DENSE_RANK", "ROW_NUMBER", "NTILE",
	"LAG", "LEAD", "FIRST_VALUE", "LAST_VALUE", "PERCENTILE_CONT", "PERCENTILE_DISC",
	"STDDEV", "STDDEV_POP", "STDDEV_SAMP", "VARIANCE", "MEDIAN", "MODE", "STRING_AGG",
	"POWER", "SQRT", "LN", "LOG", "EXP", "SIGN", "TRUNC", "MOD",
)

// Validate checks that sql is a single SELECT (or WITH ... SELECT) statement
// that reads only sales_data (or CTEs over it) and names only known columns,
// functions and aliases it declares itself. It returns the statement without trailing
// semicolons.
func Validate(sql string) (string, error) {
	statement := stripTrailingSemicolons(sql)
	if statement == "" {
		return "", reject("empty statement")
	}
	tokens, err := tokenize(statement)
	if err != nil {
		return "", err
	}
	if len(tokens) == 0 {
		return "", reject("empty statement")
	}
	first := tokens[0]
	if first.kind != tokenWord || (first.upper != "SELECT" && first.upper != "WITH") {
		return "", reject("only SELECT queries are allowed")
	}

	for _, tok := range tokens {
		if tok.kind == tokenWord && forbiddenKeywords[tok.upper] {
			return "", reject("keyword %s is not allowed", tok.upper)
		}
		if tok.kind == tokenPunct && tok.text == ";" {
			return "", reject("multiple statements are not allowed")
		}
	}

	sc := collectScope(tokens)
	if err := checkTableReferences(tokens, sc); err != nil {
		return "", err
	}
	if err := checkIdentifiers(tokens, sc); err != nil {
		return "", err
	}
	return statement, nil
}

type tokenKind int

const (
	tokenWord tokenKind = iota
	tokenString
	tokenNumber
	tokenPunct
)

type token struct {
	kind  tokenKind
	text  string
	upper string
}

func tokenize(sql string) ([]token, error) {
	var tokens []token
	runes := []rune(sql)
	for i := 0; i < len(runes); {
		r := runes[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case r == '-' && i+1 < len(runes) && runes[i+1] == '-':
			return nil, reject("comments are not allowed")
		case r == '/' && i+1 < len(runes) && runes[i+1] == '*':
			return nil, reject("comments are not allowed")
		case r == '\'':
			j := i + 1
			for {
				if j >= len(runes) {
					return nil, reject("unterminated string literal")
				}
				if runes[j] == '\'' {
					if j+1 < len(runes) && runes[j+1] == '\'' {
						j += 2
						continue
					}
					break
				}
				j++
			}
			tokens = append(tokens, token{kind: tokenString, text: string(runes[i : j+1])})
			i = j + 1
		case r == '"':
			j := i + 1
			for j < len(runes) && runes[j] != '"' {
				j++
			}
			if j >= len(runes) {
				return nil, reject("unterminated quoted identifier")
			}
			name := string(runes[i+1 : j])
			tokens = append(tokens, token{kind: tokenWord, text: name, upper: strings.ToUpper(name)})
			i = j + 1
		case unicode.IsLetter(r) || r == '_':
			j := i + 1
			for j < len(runes) && (unicode.IsLetter(runes[j]) || unicode.IsDigit(runes[j]) || runes[j] == '_') {
				j++
			}
			word := string(runes[i:j])
			tokens = append(tokens, token{kind: tokenWord, text: word, upper: strings.ToUpper(word)})
			i = j
		case unicode.IsDigit(r):
			j := i + 1
			for j < len(runes) && (unicode.IsDigit(runes[j]) || runes[j] == '.') {
				j++
			}
			tokens = append(tokens, token{kind: tokenNumber, text: string(runes[i:j])})
			i = j
		case r == '$' || r == '`' || r == '\\':
			return nil, reject("character %q is not allowed", r)
		default:
			tokens = append(tokens, token{kind: tokenPunct, text: string(r)})
			i++
		}
	}
	return tokens, nil
}

// scope holds the names a statement declares for itself. Only CTE names may
// appear after FROM or JOIN. Table aliases and column aliases are valid as
// identifiers only.
type scope struct {
	ctes         map[string]bool
	tableAliases map[string]bool
	// columnAliases maps an alias to the token positions that declare it.
	columnAliases map[string][]int
	depth         []int
}

func collectScope(tokens []token) scope {
	sc := scope{
		ctes:          map[string]bool{},
		tableAliases:  map[string]bool{},
		columnAliases: map[string][]int{},
		depth:         parenDepths(tokens),
	}

	// WITH name AS ( ... ), name AS ( ... )
	for i, tok := range tokens {
		if tok.kind != tokenWord || isReserved(tok.upper) || i == 0 || i+2 >= len(tokens) {
			continue
		}
		prev := tokens[i-1]
		if tokens[i+1].upper == "AS" && tokens[i+2].text == "(" &&
			(prev.upper == "WITH" || prev.upper == "RECURSIVE" || prev.text == ",") {
			sc.ctes[strings.ToLower(tok.text)] = true
		}
	}

	subqueryClose := subqueryCloses(tokens)
	for i, tok := range tokens {
		isSource := tok.kind == tokenWord && i > 0 && sc.isTable(strings.ToLower(tok.text)) &&
			(tokens[i-1].upper == "FROM" || tokens[i-1].upper == "JOIN" || tokens[i-1].text == ",")
		if isSource || subqueryClose[i] {
			if name, ok := aliasAfter(tokens, i+1); ok {
				sc.tableAliases[name] = true
			}
			continue
		}
		if tok.upper != "AS" || i+1 >= len(tokens) || tokens[i+1].kind != tokenWord || isReserved(tokens[i+1].upper) {
			continue
		}
		if i+2 < len(tokens) && tokens[i+2].text == "(" {
			continue
		}
		if i > 0 && (subqueryClose[i-1] || (tokens[i-1].kind == tokenWord && sc.isTable(strings.ToLower(tokens[i-1].text)))) {
			continue
		}
		name := strings.ToLower(tokens[i+1].text)
		sc.columnAliases[name] = append(sc.columnAliases[name], i+1)
	}
	return sc
}

func (sc scope) isTable(name string) bool {
	return name == schema.Table || sc.ctes[name]
}

// columnAliasVisible reports whether the alias used at idx was declared
// earlier in the same query level or inside a nested subquery.
func (sc scope) columnAliasVisible(name string, idx int) bool {
	for _, decl := range sc.columnAliases[name] {
		if decl <= idx || sc.depth[decl] > sc.depth[idx] {
			return true
		}
	}
	return false
}

// aliasAfter reads "name" or "AS name" starting at idx.
func aliasAfter(tokens []token, idx int) (string, bool) {
	if idx < len(tokens) && tokens[idx].upper == "AS" {
		idx++
	}
	if idx >= len(tokens) || tokens[idx].kind != tokenWord || isReserved(tokens[idx].upper) {
		return "", false
	}
	if idx+1 < len(tokens) && tokens[idx+1].text == "(" {
		return "", false
	}
	return strings.ToLower(tokens[idx].text), true
}

func parenDepths(tokens []token) []int {
	depths := make([]int, len(tokens))
	depth := 0
	for i, tok := range tokens {
		if tok.kind == tokenPunct && tok.text == ")" && depth > 0 {
			depth--
		}
		depths[i] = depth
		if tok.kind == tokenPunct && tok.text == "(" {
			depth++
		}
	}
	return depths
}

// subqueryCloses marks the ")" tokens that end a parenthesised SELECT.
func subqueryCloses(tokens []token) map[int]bool {
	closes := map[int]bool{}
	var open []bool
	for i, tok := range tokens {
		if tok.kind != tokenPunct {
			continue
		}
		switch tok.text {
		case "(":
			open = append(open, i+1 < len(tokens) && (tokens[i+1].upper == "SELECT" || tokens[i+1].upper == "WITH"))
		case ")":
			if len(open) == 0 {
				continue
			}
			if open[len(open)-1] {
				closes[i] = true
			}
			open = open[:len(open)-1]
		}
	}
	return closes
}

type parenKind int

const (
	parenGroup parenKind = iota
	parenFunc
	parenSubquery
)

func checkTableReferences(tokens []token, sc scope) error {
	var stack []parenKind
	for i, tok := range tokens {
		switch {
		case tok.kind == tokenPunct && tok.text == "(":
			kind := parenGroup
			if i+1 < len(tokens) && (tokens[i+1].upper == "SELECT" || tokens[i+1].upper == "WITH") {
				kind = parenSubquery
			} else if i > 0 && tokens[i-1].kind == tokenWord && !isClauseWord(tokens[i-1].upper) {
				kind = parenFunc
			}
			stack = append(stack, kind)
		case tok.kind == tokenPunct && tok.text == ")":
			if len(stack) == 0 {
				return reject("unbalanced parentheses")
			}
			stack = stack[:len(stack)-1]
		case tok.kind == tokenWord && (tok.upper == "FROM" || tok.upper == "JOIN"):
			// EXTRACT(YEAR FROM sale_date) and friends.
			if tok.upper == "FROM" && len(stack) > 0 && stack[len(stack)-1] == parenFunc {
				continue
			}
			if err := checkTableTarget(tokens, i+1, sc); err != nil {
				return err
			}
			// Comma-separated FROM lists.
			for j := i + 1; j < len(tokens); j++ {
				if tokens[j].kind == tokenPunct && (tokens[j].text == "(" || tokens[j].text == ")") {
					break
				}
				if tokens[j].kind == tokenWord && isClauseWord(tokens[j].upper) {
					break
				}
				if tokens[j].kind == tokenPunct && tokens[j].text == "," {
					if err := checkTableTarget(tokens, j+1, sc); err != nil {
						return err
					}
				}
			}
		}
	}
	if len(stack) != 0 {
		return reject("unbalanced parentheses")
	}
	return nil
}

func checkTableTarget(tokens []token, idx int, sc scope) error {
	if idx >= len(tokens) {
		return reject("missing table after FROM")
	}
	target := tokens[idx]
	if target.kind == tokenPunct && target.text == "(" {
		return nil
	}
	if target.kind != tokenWord {
		return reject("unexpected table reference %q", target.text)
	}
	name := strings.ToLower(target.text)
	if sc.isTable(name) {
		if idx+1 < len(tokens) && tokens[idx+1].text == "(" {
			return reject("table functions are not allowed")
		}
		if idx+1 < len(tokens) && tokens[idx+1].text == "." {
			return reject("schema-qualified tables are not allowed")
		}
		return nil
	}
	return reject("table %q is not allowed", target.text)
}

func checkIdentifiers(tokens []token, sc scope) error {
	for i, tok := range tokens {
		if tok.kind != tokenWord {
			continue
		}
		if keywords[tok.upper] || functions[tok.upper] {
			continue
		}
		// Aliases may not shadow a call to an unlisted function.
		if i+1 < len(tokens) && tokens[i+1].text == "(" {
			return reject("function %s is not allowed", tok.text)
		}
		lower := strings.ToLower(tok.text)
		if sc.isTable(lower) || schema.HasColumn(lower) || sc.tableAliases[lower] || sc.columnAliasVisible(lower, i) {
			continue
		}
		return reject("unknown identifier %q", tok.text)
	}
	return nil
}

func isReserved(upper string) bool {
	return keywords[upper] || forbiddenKeywords[upper] || functions[upper]
}

func isClauseWord(upper string) bool {
	switch upper {
	case "SELECT", "FROM", "WHERE", "GROUP", "ORDER", "HAVING", "LIMIT", "OFFSET", "JOIN",
		"INNER", "LEFT", "RIGHT", "FULL", "CROSS", "ON", "USING", "UNION", "INTERSECT", "EXCEPT",
		"WITH", "AS", "IN", "EXISTS", "AND", "OR", "NOT", "OVER", "ANY", "SOME", "ALL",
		"WHEN", "THEN", "ELSE":
		return true
	}
	return false
}

func stripTrailingSemicolons(sql string) string {
	trimmed := strings.TrimSpace(sql)
	for strings.HasSuffix(trimmed, ";") {
		trimmed = strings.TrimSpace(strings.TrimSuffix(trimmed, ";"))
	}
	return trimmed
}

func setOf(values ...string) map[string]bool {
	out := make(map[string]bool, len(values))
	for _, value := range values {
		out[value] = true
	}
	return out
}
